package conventions

// Catalog lists conventions contributed by a package or plugin. Builders
// scan the catalog given with WithCatalog when they are created.
//
// Packages typically expose a Catalog instead of relying on init-time
// registration:
//
//	var Conventions = conventions.NewCatalog(
//	    storage.Convention{},
//	    conventions.ServiceConventionFunc(registerHandlers),
//	)
type Catalog interface {
	Conventions() ([]any, error)
}

// CatalogFunc adapts a function to a Catalog.
type CatalogFunc func() ([]any, error)

// Conventions calls f.
func (f CatalogFunc) Conventions() ([]any, error) { return f() }

type staticCatalog []any

func (c staticCatalog) Conventions() ([]any, error) {
	return append([]any(nil), c...), nil
}

// NewCatalog returns a Catalog listing items in order.
func NewCatalog(items ...any) Catalog {
	return staticCatalog(items)
}

// MergeCatalogs lists the conventions of every catalog in order.
func MergeCatalogs(catalogs ...Catalog) Catalog {
	return CatalogFunc(func() ([]any, error) {
		var out []any
		for _, c := range catalogs {
			if c == nil {
				continue
			}
			items, err := c.Conventions()
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		return out, nil
	})
}
