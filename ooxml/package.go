// Package ooxml is a raw editor for Office Open XML (.docx) packages. It
// exposes a narrow set of operations — read/write the document part, add
// media, append relationships — over an unpacked zip, instead of a general
// document object model: re-serializing an already-rendered package through
// an object model can silently renumber relationships that the templating
// step wrote.
package ooxml

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Well-known part names inside a .docx package.
const (
	DocumentPart = "word/document.xml"
	RelsPart     = "word/_rels/document.xml.rels"
	MediaDir     = "word/media"
)

// ErrMalformedPackage indicates the zip is not a usable .docx package.
var ErrMalformedPackage = errors.New("ooxml: malformed package")

// Package is an unpacked .docx under edit in a scratch directory.
type Package struct {
	srcPath string
	scratch string
}

// Open extracts the package at path into a scratch directory. The caller
// must Close the package to release the scratch directory, on both success
// and failure paths.
func Open(path string) (*Package, error) {
	scratch, err := os.MkdirTemp("", "quotedoc-pkg-")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	if err := extractZip(path, scratch); err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := os.Stat(filepath.Join(scratch, filepath.FromSlash(DocumentPart))); err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("%w: %s not found", ErrMalformedPackage, DocumentPart)
	}
	return &Package{srcPath: path, scratch: scratch}, nil
}

// Close removes the scratch directory.
func (p *Package) Close() error {
	return os.RemoveAll(p.scratch)
}

// Path returns the package file this editor was opened from.
func (p *Package) Path() string { return p.srcPath }

// Part reads a package part by its zip-internal name.
func (p *Package) Part(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(p.scratch, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("read part %s: %w", name, err)
	}
	return string(data), nil
}

// SetPart overwrites a package part.
func (p *Package) SetPart(name, content string) error {
	full := filepath.Join(p.scratch, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write part %s: %w", name, err)
	}
	return nil
}

// Parts lists all part names in the package, zip-internal (slash) form.
func (p *Package) Parts() ([]string, error) {
	var names []string
	err := filepath.Walk(p.scratch, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(p.scratch, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	return names, err
}

// Document reads word/document.xml.
func (p *Package) Document() (string, error) { return p.Part(DocumentPart) }

// SetDocument overwrites word/document.xml.
func (p *Package) SetDocument(content string) error { return p.SetPart(DocumentPart, content) }

// HasMedia reports whether the named file exists under word/media.
func (p *Package) HasMedia(name string) bool {
	_, err := os.Stat(filepath.Join(p.scratch, filepath.FromSlash(MediaDir), name))
	return err == nil
}

// AddMedia copies the file at src into word/media under a fresh unique name
// and returns that name.
func (p *Package) AddMedia(src string) (string, error) {
	ext := strings.ToLower(filepath.Ext(src))
	if ext == "" {
		ext = ".png"
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext

	mediaDir := filepath.Join(p.scratch, filepath.FromSlash(MediaDir))
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open media source: %w", err)
	}
	defer in.Close()
	out, err := os.Create(filepath.Join(mediaDir, name))
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy media: %w", err)
	}
	return name, nil
}

// Save re-zips the scratch directory back over the original package path
// atomically (write a new archive, then replace).
func (p *Package) Save() error { return p.SaveTo(p.srcPath) }

// SaveTo re-zips the scratch directory to dst atomically.
func (p *Package) SaveTo(dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".quotedoc-*.docx")
	if err != nil {
		// Destination dir may not allow temp files; fall back to the
		// system temp dir with a copy at the end.
		tmp, err = os.CreateTemp("", ".quotedoc-*.docx")
		if err != nil {
			return err
		}
	}
	tmpName := tmp.Name()
	if err := p.writeZip(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		// Cross-device rename; copy then remove.
		if cerr := copyFile(tmpName, dst); cerr != nil {
			os.Remove(tmpName)
			return fmt.Errorf("replace %s: %w", dst, cerr)
		}
		os.Remove(tmpName)
	}
	return nil
}

func (p *Package) writeZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	err := filepath.Walk(p.scratch, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(p.scratch, path)
		if err != nil {
			return err
		}
		f, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(f, in)
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func extractZip(path, dst string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	defer r.Close()

	for _, f := range r.File {
		name := filepath.FromSlash(f.Name)
		if strings.Contains(name, "..") {
			return fmt.Errorf("%w: unsafe entry %q", ErrMalformedPackage, f.Name)
		}
		full := filepath.Join(dst, name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(full, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(full)
		if err != nil {
			rc.Close()
			return err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return err
		}
		out.Close()
		rc.Close()
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
