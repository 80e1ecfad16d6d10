// Package factory is a generic registry that builds pluggable modules (metrics
// sinks, history stores) from a type name and a map of raw settings.
//
//	reg := factory.NewRegistry[history.Store]()
//	_ = reg.Register("sqlite", func(conf map[string]any) (history.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return history.NewSQLiteStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "h.db"}})
package factory
