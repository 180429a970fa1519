package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

const (
	regHeader = "Windows Registry Editor Version 5.00"
	regEOL    = "\r\n"

	// DefaultHive is the registry hive records are exported under.
	DefaultHive = "HKEY_CURRENT_USER"
)

var regEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// RegExporter writes a file that regedit can import.
type RegExporter struct {
	src  Source
	hive string
}

func NewRegExporter(src Source, hive string) *RegExporter {
	if hive == "" {
		hive = DefaultHive
	}
	return &RegExporter{src: src, hive: hive}
}

func (*RegExporter) FileTypeDescription() string { return "Registry File" }

func (*RegExporter) FileTypeExtension() string { return "reg" }

func (e *RegExporter) Export(w io.Writer, sessions []*models.Session) (int, error) {
	bw := bufio.NewWriter(w)
	base := e.hive + `\` + e.src.Root

	bw.WriteString(regHeader + regEOL)
	bw.WriteString(regEOL)
	bw.WriteString("[" + base + "]" + regEOL)
	bw.WriteString(regEOL)

	count := 0
	for _, s := range sessions {
		names, attrs, ok, err := e.src.record(s.Name)
		if err != nil {
			return count, err
		}
		if !ok {
			continue
		}
		bw.WriteString("[" + base + `\` + s.Name + "]" + regEOL)
		for _, n := range names {
			bw.WriteString(regLine(n, attrs[n]) + regEOL)
		}
		bw.WriteString(regEOL)
		count++
	}

	if err := bw.Flush(); err != nil {
		return count, fmt.Errorf("write registry export: %w", err)
	}
	return count, nil
}

func regLine(name string, v models.Value) string {
	if v.IsDWord() {
		return fmt.Sprintf(`"%s"=dword:%08x`, regEscaper.Replace(name), v.DWord)
	}
	return fmt.Sprintf(`"%s"="%s"`, regEscaper.Replace(name), regEscaper.Replace(v.Str))
}
