package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/mastercactapus/grblstream/machine"
	"github.com/mastercactapus/grblstream/machine/grbl"
	"github.com/mastercactapus/grblstream/spjs"
)

func main() {
	log.SetFlags(log.Lshortfile)

	port := flag.String("port", "/dev/ttyUSB0", "Serial port path (or port name when using SPJS).")
	baud := flag.Int("baud", 115200, "Serial baud rate.")
	spjsURL := flag.String("spjs", "", "Websocket URL of an SPJS server; empty drives the port directly.")
	addr := flag.String("addr", ":9091", "Address to bind the grblstream server to.")
	dir := flag.String("dir", "./data", "G-code data directory.")
	poll := flag.Duration("poll", 50*time.Millisecond, "Transport poll interval.")
	status := flag.Duration("status", 200*time.Millisecond, "Status query interval.")
	flag.Parse()

	var t machine.Transport
	if *spjsURL != "" {
		t = grbl.NewSPJSTransport(spjs.NewClient(*spjsURL), *port, *baud)
	} else {
		t = grbl.NewSerialTransport(*port, *baud)
	}

	m := machine.New(grbl.NewController(t), machine.Config{
		PollInterval:   *poll,
		StatusInterval: *status,
	})

	api := newAPI(m, *dir)

	log.Println("Listening on", *addr)
	err := http.ListenAndServe(*addr, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
		api.ServeHTTP(w, req)
	}))
	if err != nil {
		log.Fatal(err)
	}
}
