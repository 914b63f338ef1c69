package spjs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func parse(t *testing.T, data string) (interface{}, error) {
	var msg map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal([]byte(data), &msg))
	return parseSPJSMessage([]byte(data), msg)
}

func TestParseSPJSMessage(t *testing.T) {
	val, err := parse(t, `{"Error":"Could not open port"}`)
	assert.NoError(t, err)
	assert.Equal(t, &ErrorMessage{Error: "Could not open port"}, val)

	val, err = parse(t, `{"SerialPorts":[{"Name":"/dev/ttyUSB0","IsOpen":true,"Baud":115200}]}`)
	assert.NoError(t, err)
	list := val.(*SerialPortList)
	assert.Len(t, list.SerialPorts, 1)
	assert.Equal(t, "/dev/ttyUSB0", list.SerialPorts[0].Name)
	assert.True(t, list.SerialPorts[0].IsOpen)
	assert.Equal(t, 115200, list.SerialPorts[0].Baud)

	val, err = parse(t, `{"Type":["Queued"],"Cmd":"Queued","QCnt":1,"Id":"g0","D":["G0 X1"]}`)
	assert.NoError(t, err)
	status := val.(*CmdStatus)
	assert.Equal(t, 1, status.QueueCount)
	assert.Equal(t, "g0", status.ID)

	val, err = parse(t, `{"P":"/dev/ttyUSB0","D":"ok\r\n"}`)
	assert.NoError(t, err)
	assert.Equal(t, &DataFrame{Port: "/dev/ttyUSB0", Data: "ok\r\n"}, val)

	_, err = parse(t, `{"Version":"1.96","Commit":"abc"}`)
	assert.Error(t, err)
}

func TestClient_RoundTrip(t *testing.T) {
	var up websocket.Upgrader
	received := make(chan string, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		// command echo, then a data frame; only the frame should surface
		ws.WriteMessage(websocket.TextMessage, []byte("list"))
		ws.WriteMessage(websocket.TextMessage, []byte(`{"P":"/dev/ttyUSB0","D":"ok\r\n"}`))
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
		}
	}))
	defer srv.Close()

	c := NewClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	defer c.Close()

	// the loop requests a port list on every connect
	select {
	case cmd := <-received:
		assert.Equal(t, "list", cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("never connected")
	}
	assert.True(t, c.Connected())

	c.WriteString("send /dev/ttyUSB0 G0 X1\n")
	select {
	case cmd := <-received:
		assert.Equal(t, "send /dev/ttyUSB0 G0 X1\n", cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command never arrived")
	}

	c.SendJSON(JSON{Port: "/dev/ttyUSB0", Data: []Data{{Data: "G0 X1", ID: "1"}}})
	select {
	case cmd := <-received:
		assert.Equal(t, `sendjson {"P":"/dev/ttyUSB0","Data":[{"D":"G0 X1","Id":"1"}]}`, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("sendjson never arrived")
	}

	select {
	case msg := <-c.Messages():
		assert.Equal(t, &DataFrame{Port: "/dev/ttyUSB0", Data: "ok\r\n"}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws")
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.False(t, c.Connected())
}
