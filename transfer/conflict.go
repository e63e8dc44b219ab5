package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// resolveSavePath applies spec §4.8 step 3's conflict-resolution policies
// against an existing file at the candidate path. ok=false means the file
// should be skipped rather than written.
func resolveSavePath(policy ConflictPolicy, candidate string, now time.Time) (path string, ok bool, err error) {
	switch policy {
	case Overwrite:
		return candidate, true, nil
	case Skip:
		if _, statErr := os.Stat(candidate); statErr == nil {
			return "", false, nil
		}
		return candidate, true, nil
	case Ask:
		// Resolved exactly like AutoRename: the receiver calls
		// resolveSavePath for every policy, and neither pauses the file
		// nor asks the caller for a decision.
		fallthrough
	case AutoRename:
		return autoRename(candidate)
	default:
		return "", false, fmt.Errorf("unknown conflict policy %d", policy)
	}
}

// autoRename finds an unused "name (n).ext" variant, falling back to a
// timestamp suffix if 1000 numbered variants are all taken (spec §4.8:
// "until unused, else timestamped fallback").
func autoRename(candidate string) (string, bool, error) {
	if _, err := os.Stat(candidate); err != nil {
		if os.IsNotExist(err) {
			return candidate, true, nil
		}
		return "", false, fmt.Errorf("stat %q: %w", candidate, err)
	}

	dir := filepath.Dir(candidate)
	ext := filepath.Ext(candidate)
	base := strings.TrimSuffix(filepath.Base(candidate), ext)

	const maxAttempts = 1000
	for n := 1; n <= maxAttempts; n++ {
		attempt := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, ext))
		if _, err := os.Stat(attempt); err != nil {
			if os.IsNotExist(err) {
				return attempt, true, nil
			}
			return "", false, fmt.Errorf("stat %q: %w", attempt, err)
		}
	}

	fallback := filepath.Join(dir, fmt.Sprintf("%s %d%s", base, time.Now().UnixNano(), ext))
	return fallback, true, nil
}

// savePathFor computes the destination path for one received file, joining
// an optional sender-name subdirectory as spec §4.8 step 3 allows.
func savePathFor(opts ReceiveOptions, relativePath string) (string, error) {
	cleaned := filepath.Clean(relativePath)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid relative path %q", relativePath)
	}

	dir := opts.SaveDirectory
	if opts.IncludeSubdir && opts.SenderName != "" {
		dir = filepath.Join(dir, sanitizeDirName(opts.SenderName))
	}
	return filepath.Join(dir, cleaned), nil
}

func sanitizeDirName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	cleaned := replacer.Replace(name)
	if cleaned == "" {
		return "unknown-sender"
	}
	return cleaned
}
