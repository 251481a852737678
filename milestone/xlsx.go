package milestone

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// workbook is a minimal .xlsx reader: enough to pull cell values out of a
// named sheet, nothing more.
type workbook struct {
	zr     *zip.ReadCloser
	sheets map[string]string // sheet name -> part path
	shared []string
}

func openWorkbook(file string) (*workbook, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", file, err)
	}
	wb := &workbook{zr: zr, sheets: make(map[string]string)}
	if err := wb.readStructure(); err != nil {
		zr.Close()
		return nil, err
	}
	return wb, nil
}

func (wb *workbook) Close() error { return wb.zr.Close() }

func (wb *workbook) readStructure() error {
	var meta struct {
		Sheets []struct {
			Name string `xml:"name,attr"`
			RID  string `xml:"id,attr"`
		} `xml:"sheets>sheet"`
	}
	if err := wb.decodePart("xl/workbook.xml", &meta); err != nil {
		return err
	}

	var rels struct {
		Rels []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := wb.decodePart("xl/_rels/workbook.xml.rels", &rels); err != nil {
		return err
	}
	targets := make(map[string]string, len(rels.Rels))
	for _, r := range rels.Rels {
		targets[r.ID] = r.Target
	}
	for _, s := range meta.Sheets {
		if target, ok := targets[s.RID]; ok {
			wb.sheets[s.Name] = path.Join("xl", target)
		}
	}

	// sharedStrings is optional; inline-only workbooks omit it.
	if err := wb.readSharedStrings(); err != nil {
		return err
	}
	return nil
}

func (wb *workbook) readSharedStrings() error {
	rc, err := wb.openPart("xl/sharedStrings.xml")
	if err != nil {
		return nil
	}
	defer rc.Close()

	var sst struct {
		Items []struct {
			Texts []string `xml:"t"`
			Runs  []string `xml:"r>t"`
		} `xml:"si"`
	}
	if err := xml.NewDecoder(rc).Decode(&sst); err != nil {
		return fmt.Errorf("parse sharedStrings: %w", err)
	}
	for _, si := range sst.Items {
		wb.shared = append(wb.shared, strings.Join(si.Texts, "")+strings.Join(si.Runs, ""))
	}
	return nil
}

// rows reads a sheet into row number -> column letter -> value.
func (wb *workbook) rows(sheetName string) (map[int]map[string]string, error) {
	part, ok := wb.sheets[sheetName]
	if !ok {
		return nil, fmt.Errorf("sheet %q not in workbook", sheetName)
	}

	var sheet struct {
		Rows []struct {
			R     int `xml:"r,attr"`
			Cells []struct {
				R string `xml:"r,attr"`
				T string `xml:"t,attr"`
				V string `xml:"v"`
				I string `xml:"is>t"`
			} `xml:"c"`
		} `xml:"sheetData>row"`
	}
	if err := wb.decodePart(part, &sheet); err != nil {
		return nil, err
	}

	out := make(map[int]map[string]string, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cols := make(map[string]string, len(row.Cells))
		for _, c := range row.Cells {
			col, _ := splitRef(c.R)
			switch c.T {
			case "s":
				idx, err := strconv.Atoi(c.V)
				if err != nil || idx < 0 || idx >= len(wb.shared) {
					continue
				}
				cols[col] = wb.shared[idx]
			case "inlineStr":
				cols[col] = c.I
			default:
				cols[col] = c.V
			}
		}
		out[row.R] = cols
	}
	return out, nil
}

func (wb *workbook) openPart(name string) (io.ReadCloser, error) {
	for _, f := range wb.zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("part %s not in workbook", name)
}

func (wb *workbook) decodePart(name string, v any) error {
	rc, err := wb.openPart(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// splitRef splits a cell reference like "F10" into column letters and row
// number.
func splitRef(ref string) (string, int) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	row, _ := strconv.Atoi(ref[i:])
	return ref[:i], row
}
