// Package mockserver emulates the X-Plane 12 Web API for local development
// and connector tests: the REST dataref index endpoint plus a websocket that
// answers subscriptions with a scripted flight (parked, taxi, climb, cruise,
// landing, shutdown).
package mockserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type datarefInfo struct {
	ID         int    `json:"id"`
	IsWritable bool   `json:"is_writable"`
	Name       string `json:"name"`
	ValueType  string `json:"value_type"`
}

var (
	upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	mu         sync.Mutex
	datarefIDs = make(map[string]int)
	nextID     = 1000
)

func idFor(name string) int {
	mu.Lock()
	defer mu.Unlock()
	if id, ok := datarefIDs[name]; ok {
		return id
	}
	id := nextID
	nextID++
	datarefIDs[name] = id
	return id
}

// Start launches the mock server on the given port. The caller shuts it down
// via the returned *http.Server.
func Start(port string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/datarefs", datarefsHandler)
	mux.HandleFunc("/api/v2", wsHandler)

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		logrus.Infof("mockserver: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("mockserver: ListenAndServe failed")
		}
	}()
	return srv
}

func datarefsHandler(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["filter[name]"]

	data := make([]datarefInfo, 0, len(names))
	for _, name := range names {
		vt := "float"
		if name == "sim/flightmodel/engine/ENGN_running" {
			vt = "float[]"
		}
		data = append(data, datarefInfo{ID: idFor(name), Name: name, ValueType: vt})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// frame is one scripted telemetry state in raw simulator units: meters,
// meters per second, kilograms.
type frame struct {
	lat, lon   float64
	elevM      float64
	gsMPS      float64
	vsFPM      float64
	fuelKG     float64
	onGround   float64
	engines    []float64
	brakeRatio float64
	gearDown   float64
}

// script is a short Guarulhos departure: engine start, takeoff, cruise,
// a firm touchdown, taxi in, shutdown with the brake set.
var script = []frame{
	{lat: -23.4356, lon: -46.4731, elevM: 750, fuelKG: 9100, onGround: 1, engines: []float64{0, 0}, brakeRatio: 1, gearDown: 1},
	{lat: -23.4356, lon: -46.4731, elevM: 750, gsMPS: 8, fuelKG: 9080, onGround: 1, engines: []float64{1, 1}, gearDown: 1},
	{lat: -23.4301, lon: -46.4690, elevM: 1100, gsMPS: 85, vsFPM: 1800, fuelKG: 9000, engines: []float64{1, 1}, gearDown: 1},
	{lat: -23.1002, lon: -45.9000, elevM: 10500, gsMPS: 230, fuelKG: 8200, engines: []float64{1, 1}},
	{lat: -22.8100, lon: -43.2505, elevM: 12, gsMPS: 70, vsFPM: -380, fuelKG: 7300, onGround: 1, engines: []float64{1, 1}, gearDown: 1},
	{lat: -22.8090, lon: -43.2506, elevM: 12, gsMPS: 5, fuelKG: 7280, onGround: 1, engines: []float64{1, 1}, gearDown: 1},
	{lat: -22.8089, lon: -43.2506, elevM: 12, fuelKG: 7270, onGround: 1, engines: []float64{0, 0}, brakeRatio: 1, gearDown: 1},
}

func (f frame) payload() map[string]any {
	out := map[string]any{}
	set := func(name string, v any) {
		out[strconv.Itoa(idFor(name))] = v
	}
	set("sim/flightmodel/position/latitude", f.lat)
	set("sim/flightmodel/position/longitude", f.lon)
	set("sim/flightmodel/position/elevation", f.elevM)
	set("sim/flightmodel/position/groundspeed", f.gsMPS)
	set("sim/flightmodel/position/vh_ind_fpm", f.vsFPM)
	set("sim/flightmodel/weight/m_fuel_total", f.fuelKG)
	set("sim/flightmodel/failures/onground_any", f.onGround)
	set("sim/flightmodel/engine/ENGN_running", f.engines)
	set("sim/cockpit2/controls/parking_brake_ratio", f.brakeRatio)
	set("sim/cockpit2/controls/gear_handle_down", f.gearDown)
	return out
}

func wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("mockserver: websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var incoming struct {
			ReqID int64  `json:"req_id"`
			Type  string `json:"type"`
		}
		if err := json.Unmarshal(msg, &incoming); err != nil {
			logrus.WithError(err).Warn("mockserver: invalid JSON from client")
			continue
		}

		switch incoming.Type {
		case "dataref_subscribe_values":
			conn.WriteJSON(map[string]any{
				"req_id": incoming.ReqID, "type": "result", "success": true,
			})
			go playScript(conn)
		default:
			logrus.WithField("type", incoming.Type).Debug("mockserver: ignoring message")
		}
	}
}

// playScript replays the scripted flight, one frame per second.
func playScript(conn *websocket.Conn) {
	for _, f := range script {
		time.Sleep(time.Second)
		err := conn.WriteJSON(map[string]any{
			"type": "dataref_update_values",
			"data": f.payload(),
		})
		if err != nil {
			return
		}
	}
}
