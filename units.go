package wgobfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// UnitsOutDir is the default directory systemd unit files are written to,
// mirroring the original source's "generate once, then copy into place
// yourself" workflow rather than writing directly into /etc/systemd/system.
const UnitsOutDir = "/tmp/wgobfs"

var serviceUnitTemplate = template.Must(template.New("service").Parse(
	`[Unit]
Description=NFQUEUE WireGuard Obfuscator queue {{.Queue}}
After=network.target

[Service]
Type=simple
ExecStart={{.Exec}} start {{.Queue}}
Restart=on-failure

[Install]
WantedBy=multi-user.target
`))

var targetUnitTemplate = template.Must(template.New("target").Parse(
	`[Unit]
Description=NFQUEUE WireGuard Obfuscator (all queues)
Requires=multi-user.target
Wants={{.Wants}}

[Install]
WantedBy=multi-user.target
`))

type serviceUnitData struct {
	Queue uint16
	Exec  string
}

type targetUnitData struct {
	Wants string
}

// GenerateSystemdUnits writes one templated unit file per rule's queue plus
// a target unit binding all of them together, into dir (UnitsOutDir if
// empty). execPath is the binary path the per-queue units invoke; it
// defaults to /usr/bin/wgobfsd. Returns the list of files written.
func GenerateSystemdUnits(rules []*Rule, dir, execPath string) ([]string, error) {
	if dir == "" {
		dir = UnitsOutDir
	}
	if execPath == "" {
		execPath = "/usr/bin/wgobfsd"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	unitNames := make([]string, 0, len(rules))
	for _, rule := range rules {
		var b strings.Builder
		if err := serviceUnitTemplate.Execute(&b, serviceUnitData{Queue: rule.Queue, Exec: execPath}); err != nil {
			return written, err
		}
		name := fmt.Sprintf("wgobfs@%d.service", rule.Queue)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
		unitNames = append(unitNames, name)
	}

	var tb strings.Builder
	if err := targetUnitTemplate.Execute(&tb, targetUnitData{Wants: strings.Join(unitNames, " ")}); err != nil {
		return written, err
	}
	targetPath := filepath.Join(dir, "wgobfs.target")
	if err := os.WriteFile(targetPath, []byte(tb.String()), 0o644); err != nil {
		return written, err
	}
	written = append(written, targetPath)

	return written, nil
}
