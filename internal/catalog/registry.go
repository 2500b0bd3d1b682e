package catalog

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/1homsi/essence/languages"
)

// entry holds one language's catalog, loaded at most once per process.
type entry struct {
	once sync.Once
	cat  *Catalog
	err  error
}

var (
	registryMu sync.Mutex
	registry   = map[string]*entry{}
)

// Languages lists the languages that ship an embedded catalog.
func Languages() []string {
	names, err := fs.Glob(languages.FS, "*.yaml")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, strings.TrimSuffix(n, ".yaml"))
	}
	sort.Strings(out)
	return out
}

// ForLanguage returns the process-wide catalog for lang, loading it on first
// use. The returned catalog is shared and must not be modified; concurrent
// readers need no locking.
func ForLanguage(lang string) (*Catalog, error) {
	registryMu.Lock()
	e, ok := registry[lang]
	if !ok {
		e = &entry{}
		registry[lang] = e
	}
	registryMu.Unlock()

	e.once.Do(func() {
		e.cat, e.err = LoadLanguage(lang)
	})
	return e.cat, e.err
}

// MustForLanguage is like ForLanguage but panics on error.
// Safe for embedded catalogs, which are validated by the package tests.
func MustForLanguage(lang string) *Catalog {
	c, err := ForLanguage(lang)
	if err != nil {
		panic(fmt.Sprintf("essence: %v", err))
	}
	return c
}
