// Package folder enumerates the files of a directory that can be merged.
package folder

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lesonky/invoice-merge-tool/mergeerr"
)

// Extensions lists the accepted lower-case extensions without the dot.
var Extensions = []string{"pdf", "jpg", "jpeg", "png", "bmp", "gif", "tiff", "webp", "heic"}

// ImageExtensions is the subset of Extensions that goes through raster
// conversion.
var ImageExtensions = []string{"jpg", "jpeg", "png", "bmp", "gif", "tiff", "webp", "heic"}

// Entry describes one candidate input file.
type Entry struct {
	Path       string `json:"path"`
	Name       string `json:"fileName"`
	Ext        string `json:"ext"`
	ModifiedTS int64  `json:"modifiedTs"`
	Size       int64  `json:"size"`
}

// IsPDF reports whether e is passed to the merger unchanged.
func (e Entry) IsPDF() bool { return strings.EqualFold(e.Ext, "pdf") }

// IsImage reports whether e must be converted to a page first.
func (e Entry) IsImage() bool { return contains(ImageExtensions, strings.ToLower(e.Ext)) }

// Ext returns the lower-cased extension of path without the dot.
func Ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Scan lists the regular files directly inside dir whose extension is
// accepted, sorted by name. Subdirectories are not descended.
func Scan(dir string) ([]Entry, error) {
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, mergeerr.New(mergeerr.InvalidFolder, "scan", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, mergeerr.New(mergeerr.Io, "scan", dir, err)
	}
	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, mergeerr.New(mergeerr.Io, "scan", dir, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		info, err := de.Info()
		if err != nil {
			return nil, mergeerr.New(mergeerr.Io, "scan", filepath.Join(abs, de.Name()), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		ext := Ext(de.Name())
		if !contains(Extensions, ext) {
			continue
		}
		entries = append(entries, newEntry(filepath.Join(abs, de.Name()), info))
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat builds an Entry for a single file, for callers that name files
// explicitly instead of scanning.
func Stat(path string) (Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Entry{}, err
	}
	return newEntry(abs, info), nil
}

// Resolve builds entries for names given relative to dir (absolute names are
// kept). Names that cannot be stat'ed still yield an entry so a merge run can
// report them as failed.
func Resolve(dir string, names []string) []Entry {
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		path := n
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, n)
		}
		e, err := Stat(path)
		if err != nil {
			e = Entry{Path: path, Name: filepath.Base(path), Ext: Ext(path)}
		}
		out = append(out, e)
	}
	return out
}

func newEntry(path string, info os.FileInfo) Entry {
	mod := info.ModTime()
	if mod.IsZero() {
		mod = time.Now()
	}
	return Entry{
		Path:       path,
		Name:       filepath.Base(path),
		Ext:        Ext(path),
		ModifiedTS: mod.Unix(),
		Size:       info.Size(),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
