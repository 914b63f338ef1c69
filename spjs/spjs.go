package spjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client maintains a websocket to a Serial Port JSON Server instance,
// reconnecting with a fixed backoff after any failure. Outbound writes
// block until handed to the socket; inbound messages fan out on
// Messages.
type Client struct {
	url string

	outgoing chan message
	incoming chan interface{}

	connected int32

	closeOnce sync.Once
	closeCh   chan struct{}
}

type message struct {
	done    chan struct{}
	payload []byte
}

// DataFrame is raw serial data relayed from one port.
type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}

// CmdStatus reports queue bookkeeping for a previously sent command.
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}

type SerialPortList struct {
	SerialPorts []SerialPort
}

type SerialPort struct {
	Name                      string
	Friendly                  string
	SerialNumber              string
	DeviceClass               string
	IsOpen                    bool
	IsPrimary                 bool
	RelatedNames              []string
	Baud                      int
	BufferAlgorithm           string
	AvailableBufferAlgorithms []string
	Ver                       float64
	USBVID                    string
	USBPID                    string
	FeedRateOverride          float64
}

func NewClient(url string) *Client {
	c := &Client{
		url:      url,
		outgoing: make(chan message, 1000),
		incoming: make(chan interface{}, 1000),
		closeCh:  make(chan struct{}),
	}

	go c.loop()

	return c
}

// Messages delivers every parsed server message.
func (c *Client) Messages() <-chan interface{} {
	return c.incoming
}

// Connected reports whether the websocket is currently up.
func (c *Client) Connected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Close stops the reconnect loop and drops the socket.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })
	return nil
}

// parseSPJSMessage picks the concrete type by probing for its telltale
// field; the server does not tag its JSON.
func parseSPJSMessage(data []byte, msg map[string]json.RawMessage) (val interface{}, err error) {
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Type", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Println("ERROR: read:", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		var msg map[string]json.RawMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			log.Println("ERROR: read:", err)
			continue
		}
		val, err := parseSPJSMessage(data, msg)
		if err != nil {
			log.Println("ERROR: parse:", err)
			continue
		}
		select {
		case c.incoming <- val:
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) loop() {
	var nextUp message

reconnect:
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		log.Println("Connecting to", c.url)
		ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			log.Println("ERROR: connect:", err)
			select {
			case <-c.closeCh:
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		log.Println("Connected.")
		atomic.StoreInt32(&c.connected, 1)
		done := make(chan struct{})
		go c.readLoop(ws, done)
		go c.WriteString("list") // refresh port list on reconnect

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					log.Println("ERROR: send:", err)
					atomic.StoreInt32(&c.connected, 0)
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-c.closeCh:
				atomic.StoreInt32(&c.connected, 0)
				ws.Close()
				return
			case <-done:
				atomic.StoreInt32(&c.connected, 0)
				continue reconnect
			case nextUp = <-c.outgoing:
			}
		}
	}
}

// JSON is the payload of a `sendjson` command.
type JSON struct {
	Port string `json:"P"`
	Data []Data
}

type Data struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

// SendJSON queues commands with IDs so completion can be matched up.
// Blocks until the payload is on the wire.
func (c *Client) SendJSON(v JSON) {
	data, err := json.Marshal(v)
	if err != nil {
		// shouldn't happen since we control everything that's sent out
		log.Panicln("ERROR: sendjson (marshal):", err)
		return
	}

	c.send(append([]byte("sendjson "), data...))
}

// WriteString sends a raw server command such as `list` or
// `open /dev/ttyUSB0 grbl 115200`. Blocks until the payload is on the
// wire.
func (c *Client) WriteString(data string) {
	c.send([]byte(data))
}

func (c *Client) send(payload []byte) {
	ch := make(chan struct{})
	select {
	case c.outgoing <- message{done: ch, payload: payload}:
	case <-c.closeCh:
		return
	}
	select {
	case <-ch:
	case <-c.closeCh:
	}
}
