package extract

import (
	"os"

	"github.com/warp/benefit-engine/vr"
)

// FileStatus is the integrity view of one configured input file.
type FileStatus struct {
	Category  vr.Category `json:"category"`
	Path      string      `json:"path"`
	Mandatory bool        `json:"mandatory"`
	Found     bool        `json:"found"`
	Readable  bool        `json:"readable"`
	Rows      int         `json:"rows"`
	Columns   int         `json:"columns"`
	SizeBytes int64       `json:"size_bytes"`
	Error     string      `json:"error,omitempty"`
}

// OK reports whether the file is present and readable.
func (f FileStatus) OK() bool { return f.Found && f.Readable }

// Inspect checks every category's file without converting any data. Rows
// excludes the header line.
func Inspect(loc Locator) []FileStatus {
	out := make([]FileStatus, 0, len(vr.Categories))
	for _, c := range vr.Categories {
		out = append(out, inspectFile(c, loc.Path(c)))
	}
	return out
}

func inspectFile(c vr.Category, path string) FileStatus {
	st := FileStatus{Category: c, Path: path, Mandatory: c.IsMandatory()}
	if path == "" {
		st.Error = "not configured"
		return st
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		st.Error = "not found"
		return st
	}
	st.Found = true
	st.SizeBytes = info.Size()

	rows, err := ReadFile(path)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Readable = true
	header := firstNonBlank(rows, 0)
	if header < 0 {
		return st
	}
	for _, row := range rows[header:] {
		if len(row) > st.Columns {
			st.Columns = len(row)
		}
		if !blank(row) {
			st.Rows++
		}
	}
	st.Rows-- // header
	return st
}
