package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// scriptMarker identifies hook scripts prehook wrote, so install and
// uninstall never touch a hand-written hook.
const scriptMarker = "# installed by prehook"

// legacySuffix is appended to a pre-existing foreign hook when prehook
// takes over its slot; the generated script chains to it.
const legacySuffix = ".legacy"

// hookScriptFor renders the git hook script for one stage. The
// pre-push script reads the pushed ref ranges git feeds on stdin and
// forwards each as a --from-ref/--to-ref pair, so only the files being
// pushed are checked.
func hookScriptFor(stage string, chainLegacy bool) string {
	var buf bytes.Buffer
	buf.WriteString("#!/bin/sh\n")
	buf.WriteString(scriptMarker + " " + Version + "\n")
	if stage == stagePrePush {
		// Capture stdin once; both the legacy hook and the range loop
		// need to read it.
		buf.WriteString(`refs="$(cat)"` + "\n")
	}
	if chainLegacy {
		fmt.Fprintf(&buf, `legacy="$(dirname "$0")/%s%s"
if [ -x "$legacy" ]; then
`, stage, legacySuffix)
		if stage == stagePrePush {
			buf.WriteString(`    printf '%s\n' "$refs" | "$legacy" "$@" || exit $?
`)
		} else {
			buf.WriteString(`    "$legacy" "$@" || exit $?
`)
		}
		buf.WriteString("fi\n")
	}
	fmt.Fprintf(&buf, `if ! command -v prehook >/dev/null 2>&1; then
    echo "prehook: not found on PATH; skipping %s hooks" >&2
    exit 0
fi
`, stage)
	if stage == stagePrePush {
		buf.WriteString(`zero=0000000000000000000000000000000000000000
status=0
while read local_ref local_sha remote_ref remote_sha; do
    [ -n "$local_sha" ] || continue
    [ "$local_sha" = "$zero" ] && continue
    if [ "$remote_sha" = "$zero" ]; then
        prehook run --stage pre-push || status=1
    else
        prehook run --stage pre-push --from-ref "$remote_sha" --to-ref "$local_sha" || status=1
    fi
done <<EOF
$refs
EOF
exit $status
`)
	} else {
		fmt.Fprintf(&buf, "exec prehook run --stage %s\n", stage)
	}
	return buf.String()
}

// isPrehookScript reports whether a hook file was written by prehook.
func isPrehookScript(data []byte) bool {
	return bytes.Contains(data, []byte(scriptMarker))
}

// installHooks writes hook scripts for the given stages under
// .git/hooks. A foreign hook already in a slot is preserved as
// <stage>.legacy and chained, unless overwrite is set. Returns the
// paths written.
func installHooks(root string, stages []string, overwrite bool) ([]string, error) {
	dir, err := gitDir(root)
	if err != nil {
		return nil, err
	}
	hooksDir := filepath.Join(dir, "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return nil, fmt.Errorf("create hooks directory: %w", err)
	}

	var written []string
	for _, stage := range stages {
		path := filepath.Join(hooksDir, stage)
		chain := false

		if data, err := os.ReadFile(path); err == nil && !isPrehookScript(data) {
			if overwrite {
				// Explicit overwrite drops the old hook.
			} else {
				legacy := path + legacySuffix
				if err := os.Rename(path, legacy); err != nil {
					return written, fmt.Errorf("preserve existing %s hook: %w", stage, err)
				}
				chain = true
			}
		} else if _, err := os.Stat(path + legacySuffix); err == nil {
			// Reinstalling over our own script: keep chaining.
			chain = true
		}

		script := hookScriptFor(stage, chain)
		if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
			return written, fmt.Errorf("write %s hook: %w", stage, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// uninstallHooks removes prehook's scripts for the given stages and
// restores any preserved legacy hooks. Foreign hooks are left alone.
func uninstallHooks(root string, stages []string) ([]string, error) {
	dir, err := gitDir(root)
	if err != nil {
		return nil, err
	}
	hooksDir := filepath.Join(dir, "hooks")

	var removed []string
	for _, stage := range stages {
		path := filepath.Join(hooksDir, stage)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if !isPrehookScript(data) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("remove %s hook: %w", stage, err)
		}
		removed = append(removed, path)

		legacy := path + legacySuffix
		if _, err := os.Stat(legacy); err == nil {
			if err := os.Rename(legacy, path); err != nil {
				return removed, fmt.Errorf("restore legacy %s hook: %w", stage, err)
			}
		}
	}
	return removed, nil
}

// installedHookState reports whether a prehook script occupies a stage
// slot and whether it was written by this prehook version.
func installedHookState(root, stage string) (installed, current bool) {
	dir, err := gitDir(root)
	if err != nil {
		return false, false
	}
	data, err := os.ReadFile(filepath.Join(dir, "hooks", stage))
	if err != nil || !isPrehookScript(data) {
		return false, false
	}
	return true, bytes.Contains(data, []byte(scriptMarker+" "+Version))
}
