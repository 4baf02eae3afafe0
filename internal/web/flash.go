package web

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const flashSession = "lims-flash"

// Flash levels.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Flash is a one-time message shown after a redirect.
type Flash struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func init() {
	gob.Register(Flash{})
}

func addFlashes(w http.ResponseWriter, r *http.Request, store sessions.Store, flashes ...Flash) error {
	session, err := store.Get(r, flashSession)
	if err != nil && session == nil {
		return err
	}
	for _, f := range flashes {
		session.AddFlash(f)
	}
	return session.Save(r, w)
}

func popFlashes(w http.ResponseWriter, r *http.Request, store sessions.Store) ([]Flash, error) {
	out := []Flash{}
	session, err := store.Get(r, flashSession)
	if err != nil && session == nil {
		return out, err
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return out, nil
	}
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out, session.Save(r, w)
}
