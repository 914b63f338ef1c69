package main

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/jasonwbarnett/fileserver"

	"github.com/mastercactapus/grblstream/gcode"
	"github.com/mastercactapus/grblstream/machine"
	"github.com/mastercactapus/grblstream/machine/grbl"
)

type api struct {
	http.Handler
	m       *machine.Machine
	dataDir string
	sse     *sse.Server
}

// jobStatus is the job progress view with display-ready durations.
type jobStatus struct {
	State     machine.JobState
	Sent      int
	Total     int
	Elapsed   string
	Remaining string
}

func jobView(p machine.Progress) jobStatus {
	return jobStatus{
		State: p.State, Sent: p.Sent, Total: p.Total,
		Elapsed: p.ElapsedString(), Remaining: p.RemainingString(),
	}
}

// consoleEntry is one console line pushed over SSE, with decoded text
// attached to error and alarm lines.
type consoleEntry struct {
	Type string
	Line string
	Text string `json:",omitempty"`
}

func newAPI(m *machine.Machine, dir string) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		m:       m,
		dataDir: dir,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(ioutil.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/state", a.state).Methods("GET")
	r.HandleFunc("/api/job", a.startJob).Methods("POST")
	r.HandleFunc("/api/job", a.job).Methods("GET")
	r.HandleFunc("/api/job/pause", a.pauseJob).Methods("POST")
	r.HandleFunc("/api/job/resume", a.resumeJob).Methods("POST")
	r.HandleFunc("/api/job/stop", a.stopJob).Methods("POST")
	r.HandleFunc("/api/command", a.command).Methods("POST")
	r.HandleFunc("/api/jog", a.jog).Methods("POST")
	r.HandleFunc("/api/jog", a.jogCancel).Methods("DELETE")
	r.HandleFunc("/api/home", a.home).Methods("POST")
	r.HandleFunc("/api/unlock", a.unlock).Methods("POST")
	r.HandleFunc("/api/zero", a.zero).Methods("POST")
	r.HandleFunc("/api/zero/goto", a.gotoZero).Methods("POST")
	r.HandleFunc("/api/settings", a.settings).Methods("GET")
	r.HandleFunc("/api/firmware", a.firmware).Methods("GET")
	r.HandleFunc("/api/ports", a.ports).Methods("GET")

	fs := fileserver.New(http.Dir(dir))
	r.PathPrefix("/data/").Handler(http.StripPrefix("/data", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case "GET":
			fs.ServeHTTP(w, req)
		case "PUT":
			a.putFile(w, req)
		case "DELETE":
			a.deleteFile(w, req)
		default:
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})))

	r.PathPrefix("/events/").Handler(a.sse)
	go a.watch()

	return a
}

// watch fans machine updates out to SSE subscribers.
func (a *api) watch() {
	for {
		select {
		case s := <-a.m.StateChanges():
			a.push("/events/state", s)
		case p := <-a.m.ProgressChanges():
			a.push("/events/progress", jobView(p))
		case ev := <-a.m.Events():
			if e, ok := a.consoleView(ev); ok {
				a.push("/events/console", e)
			}
		}
	}
}

func (a *api) push(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: marshal json: %+v", err)
		return
	}
	a.sse.SendMessage(channel, sse.SimpleMessage(string(data)))
}

// consoleView shapes a classified line for the console stream. Status
// reports and settings lines are dropped; they have their own surfaces.
func (a *api) consoleView(ev interface{}) (consoleEntry, bool) {
	switch e := ev.(type) {
	case grbl.Ack:
		return consoleEntry{Type: "ok", Line: "ok"}, true
	case grbl.FirmwareError:
		return consoleEntry{Type: "error", Line: e.Raw, Text: a.m.DecodeError(e.Code)}, true
	case grbl.Banner:
		return consoleEntry{Type: "banner", Line: e.Raw}, true
	case grbl.Message:
		line := string(e)
		if len(line) > 6 && strings.EqualFold(line[:6], "ALARM:") {
			code, err := strconv.Atoi(strings.TrimSpace(line[6:]))
			if err == nil {
				return consoleEntry{Type: "alarm", Line: line, Text: a.m.DecodeAlarm(code)}, true
			}
		}
		return consoleEntry{Type: "message", Line: line}, true
	}
	return consoleEntry{}, false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Println("ERROR: encode:", err)
	}
}

func (a *api) state(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, a.m.State())
}

func (a *api) job(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, jobView(a.m.Progress()))
}

func (a *api) startJob(w http.ResponseWriter, req *http.Request) {
	lines, err := gcode.ReadAll(req.Body)
	if err != nil {
		log.Printf("ERROR: read job: %+v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	err = a.m.StartJob(lines)
	if err != nil {
		log.Printf("ERROR: start job: %+v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, jobView(a.m.Progress()))
}

func (a *api) pauseJob(w http.ResponseWriter, req *http.Request) {
	if err := a.m.PauseJob(); err != nil {
		log.Printf("ERROR: pause: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) resumeJob(w http.ResponseWriter, req *http.Request) {
	if err := a.m.ResumeJob(); err != nil {
		log.Printf("ERROR: resume: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) stopJob(w http.ResponseWriter, req *http.Request) {
	if err := a.m.StopJob(); err != nil {
		log.Printf("ERROR: stop: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) command(w http.ResponseWriter, req *http.Request) {
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		return
	}
	err = a.m.SendCommand(strings.TrimSpace(string(data)))
	if err != nil {
		log.Printf("ERROR: command: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) jog(w http.ResponseWriter, req *http.Request) {
	axis := strings.ToUpper(strings.TrimSpace(req.FormValue("axis")))
	switch axis {
	case "X", "Y", "Z", "A", "B", "C":
	default:
		http.Error(w, "invalid axis", http.StatusBadRequest)
		return
	}

	var err error
	parse := func(param string) (val float64) {
		if err != nil {
			return 0
		}
		val, err = strconv.ParseFloat(req.FormValue(param), 64)
		return val
	}
	dist := parse("distance")
	feed := parse("feed")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if feed <= 0 {
		feed = 1000
	}

	err = a.m.SendCommand(grbl.JogCommand(axis, dist, feed))
	if err != nil {
		log.Printf("ERROR: jog: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) jogCancel(w http.ResponseWriter, req *http.Request) {
	if err := a.m.Realtime(grbl.JogCancel); err != nil {
		log.Printf("ERROR: jog cancel: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) home(w http.ResponseWriter, req *http.Request) {
	if err := a.m.SendCommand(grbl.CmdHome); err != nil {
		log.Printf("ERROR: home: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) unlock(w http.ResponseWriter, req *http.Request) {
	if err := a.m.SendCommand(grbl.CmdUnlock); err != nil {
		log.Printf("ERROR: unlock: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) zero(w http.ResponseWriter, req *http.Request) {
	cmd := grbl.ZeroWorkCommand(req.FormValue("axes"))
	if cmd == "" {
		http.Error(w, "invalid axes", http.StatusBadRequest)
		return
	}
	if err := a.m.SendCommand(cmd); err != nil {
		log.Printf("ERROR: zero: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) gotoZero(w http.ResponseWriter, req *http.Request) {
	if err := a.m.SendCommand(grbl.CmdGotoZero); err != nil {
		log.Printf("ERROR: goto zero: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) settings(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, a.m.Settings())
}

func (a *api) firmware(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, a.m.Firmware())
}

func (a *api) ports(w http.ResponseWriter, req *http.Request) {
	ports, err := grbl.ListPorts()
	if err != nil {
		log.Printf("ERROR: list ports: %+v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	if ports == nil {
		ports = []string{}
	}
	writeJSON(w, ports)
}

func safePath(base, name string) (bool, string) {
	if filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator) {
		log.Println("invalid path '" + name + "'")
		return false, ""
	}
	dir := base
	if dir == "" {
		dir = "."
	}
	fullName := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+name)))
	return true, fullName
}

func (a *api) putFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.dataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	os.MkdirAll(filepath.Dir(name), 0755)
	f, err := os.Create(name)
	if err != nil {
		log.Printf("ERROR: create '%s': %+v", name, err)
		http.Error(w, err.Error(), 500)
		return
	}
	defer f.Close()
	_, err = io.Copy(f, req.Body)
	if err != nil {
		log.Printf("ERROR: write '%s': %+v", name, err)
		http.Error(w, err.Error(), 500)
		return
	}
}

func (a *api) deleteFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.dataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	err := os.Remove(name)
	if err != nil {
		log.Printf("ERROR: delete '%s': %+v", name, err)
		http.Error(w, err.Error(), 500)
		return
	}
}
