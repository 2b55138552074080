package provision

import (
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var formPage = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>OWON XDM Remote Setup</title>
<style>
body { font-family: sans-serif; background: #f0f2f5; margin: 0; }
.card { max-width: 420px; margin: 48px auto; background: #fff; border-radius: 8px; padding: 24px; box-shadow: 0 1px 4px rgba(0,0,0,.15); }
h1 { font-size: 1.2em; margin-top: 0; }
label { display: block; margin: 12px 0 4px; font-size: .9em; color: #333; }
input { width: 100%; padding: 8px; border: 1px solid #ccc; border-radius: 4px; box-sizing: border-box; }
button { margin-top: 16px; width: 100%; padding: 10px; background: #1668dc; color: #fff; border: 0; border-radius: 4px; font-size: 1em; }
</style>
</head>
<body>
<div class="card">
<h1>OWON XDM Remote Setup</h1>
<form action="/configure" method="post">
<label for="broker">MQTT broker</label>
<input id="broker" name="broker" value="{{.Broker}}" placeholder="192.168.1.10" required>
<label for="port">Port</label>
<input id="port" name="port" value="{{.Port}}">
<label for="muser">Username</label>
<input id="muser" name="muser" value="{{.Username}}">
<label for="mpass">Password</label>
<input id="mpass" name="mpass" type="password" value="{{.Password}}">
<button type="submit">Save</button>
</form>
</div>
</body>
</html>
`))

const savedPage = `<!DOCTYPE html>
<html>
<head><meta name="viewport" content="width=device-width, initial-scale=1"><title>Saved</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 64px;">
<h1>Configuration saved</h1>
<p>The bridge will connect to the new broker on its next start.</p>
</body>
</html>
`

// Portal serves the one-page broker setup form. Done() is closed after the
// first successful save so the caller can shut the box back into bridge mode.
type Portal struct {
	recordPath string
	addr       string
	done       chan struct{}
	once       sync.Once
}

func NewPortal(recordPath, addr string) *Portal {
	return &Portal{recordPath: recordPath, addr: addr, done: make(chan struct{})}
}

// Done is closed once a configuration has been saved.
func (p *Portal) Done() <-chan struct{} { return p.done }

// Run serves the portal until ctx is cancelled, a configuration is saved,
// or the listener fails.
func (p *Portal) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleRoot)
	mux.HandleFunc("/configure", p.handleConfigure)
	srv := &http.Server{Addr: p.addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("addr", p.addr).Msg("setup portal up")

	select {
	case <-ctx.Done():
	case <-p.done:
		log.Info().Msg("configuration saved, closing portal")
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleRoot renders the form on every path. Captive clients probe random
// URLs; all of them should land on the setup page.
func (p *Portal) handleRoot(w http.ResponseWriter, r *http.Request) {
	rec, err := Load(p.recordPath)
	if err != nil {
		log.Warn().Err(err).Msg("existing record unreadable, starting blank")
		rec = Record{}
	}
	if rec.Port == 0 {
		rec.Port = 1883
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formPage.Execute(w, rec); err != nil {
		log.Error().Err(err).Msg("rendering setup form failed")
	}
}

func (p *Portal) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	broker := strings.TrimSpace(r.PostFormValue("broker"))
	if broker == "" {
		http.Error(w, "broker is required", http.StatusBadRequest)
		return
	}
	port := 1883
	if v := strings.TrimSpace(r.PostFormValue("port")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 65535 {
			http.Error(w, "invalid port", http.StatusBadRequest)
			return
		}
		port = n
	}

	rec := Record{
		Broker:   broker,
		Port:     port,
		Username: r.PostFormValue("muser"),
		Password: r.PostFormValue("mpass"),
	}
	if err := Save(p.recordPath, rec); err != nil {
		log.Error().Err(err).Msg("saving provision record failed")
		http.Error(w, "could not save configuration", http.StatusInternalServerError)
		return
	}
	log.Info().Str("broker", broker).Int("port", port).Msg("broker configuration saved")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, savedPage)
	p.once.Do(func() { close(p.done) })
}
