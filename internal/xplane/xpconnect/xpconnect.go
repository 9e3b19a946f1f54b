// Package xpconnect streams the user aircraft's state out of the X-Plane 12
// Web API and feeds it to a telemetry sink as normalized samples. Dataref
// indices are resolved over REST, then values arrive over a websocket
// subscription.
package xpconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/curbz/skylink/internal/model"
	"github.com/curbz/skylink/internal/xplane/xpapimodel"
	"github.com/curbz/skylink/pkg/util"
)

// User-aircraft datarefs. Raw units are the simulator's: meters, m/s, kg.
const (
	drLatitude     = "sim/flightmodel/position/latitude"
	drLongitude    = "sim/flightmodel/position/longitude"
	drElevation    = "sim/flightmodel/position/elevation"
	drGroundSpeed  = "sim/flightmodel/position/groundspeed"
	drVerticalFPM  = "sim/flightmodel/position/vh_ind_fpm"
	drFuelTotal    = "sim/flightmodel/weight/m_fuel_total"
	drOnGround     = "sim/flightmodel/failures/onground_any"
	drEngines      = "sim/flightmodel/engine/ENGN_running"
	drParkingBrake = "sim/cockpit2/controls/parking_brake_ratio"
	drGearHandle   = "sim/cockpit2/controls/gear_handle_down"
)

const (
	metersToFeet = 3.28084
	mpsToKnots   = 1.94384
	kgToLbs      = 2.20462
)

// TelemetrySink receives normalized samples. The session service satisfies
// this directly.
type TelemetrySink interface {
	SubmitTelemetry(model.TelemetrySample)
}

type config struct {
	XPlane struct {
		RestBaseURL  string `yaml:"web_api_http_url"`
		WebSocketURL string `yaml:"web_api_websocket_url"`
	} `yaml:"xplane_api"`
}

// XPConnect owns the websocket connection and the subscribed dataref table.
type XPConnect struct {
	config   config
	conn     *websocket.Conn
	sink     TelemetrySink
	datarefs []xpapimodel.Dataref
	index    map[int]*xpapimodel.Dataref
}

var requestCounter atomic.Int64

// New reads the connection config and prepares the dataref table. Nothing
// touches the network until Run.
func New(cfgPath string, sink TelemetrySink) (*XPConnect, error) {
	cfg, err := util.LoadConfig[config](cfgPath)
	if err != nil {
		return nil, fmt.Errorf("error reading configuration file: %w", err)
	}

	datarefs := []xpapimodel.Dataref{
		{Name: drLatitude},
		{Name: drLongitude},
		{Name: drElevation},
		{Name: drGroundSpeed},
		{Name: drVerticalFPM},
		{Name: drFuelTotal},
		{Name: drOnGround},
		{Name: drEngines, DecodedDataType: "float_array"},
		{Name: drParkingBrake},
		{Name: drGearHandle},
	}

	return &XPConnect{
		config:   *cfg,
		sink:     sink,
		datarefs: datarefs,
	}, nil
}

// Run resolves the dataref indices, subscribes over the websocket, and pumps
// samples into the sink until the context is cancelled or the connection
// drops.
func (xpc *XPConnect) Run(ctx context.Context) error {
	var err error
	xpc.index, err = xpc.getDataRefIndices(xpc.datarefs)
	if err != nil {
		return fmt.Errorf("failed to retrieve dataref indices via REST: %w", err)
	}
	if len(xpc.index) != len(xpc.datarefs) {
		return fmt.Errorf("only %d of %d dataref indices were received", len(xpc.index), len(xpc.datarefs))
	}
	for id, dr := range xpc.index {
		logrus.WithFields(logrus.Fields{"dataref": dr.Name, "id": id}).Debug("dataref index resolved")
	}

	u, err := url.Parse(xpc.config.XPlane.WebSocketURL)
	if err != nil {
		return fmt.Errorf("invalid websocket url: %w", err)
	}
	xpc.conn, _, err = websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("could not connect to X-Plane websocket: %w", err)
	}
	defer xpc.conn.Close()
	logrus.Info("websocket connection established")

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := xpc.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					done <- nil
					return
				}
				done <- err
				return
			}
			xpc.processMessage(message)
		}
	}()

	if err := xpc.sendDatarefSubscription(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		xpc.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	case err := <-done:
		return err
	}
}

// getDataRefIndices fetches the integer indices for the named datarefs via
// HTTP GET.
func (xpc *XPConnect) getDataRefIndices(drefs []xpapimodel.Dataref) (map[int]*xpapimodel.Dataref, error) {
	fullURL, err := buildURLWithFilters(xpc.config.XPlane.RestBaseURL+"/datarefs", drefs)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing HTTP GET to %s: %w", fullURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received status %d from X-Plane REST API: %s", resp.StatusCode, string(body))
	}

	var response xpapimodel.APIResponseDatarefs
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding response body: %w", err)
	}

	m := make(map[int]*xpapimodel.Dataref)
	for _, info := range response.Data {
		for _, dr := range drefs {
			if dr.Name == info.Name {
				m[info.ID] = &xpapimodel.Dataref{
					Name:            dr.Name,
					APIInfo:         info,
					DecodedDataType: dr.DecodedDataType,
				}
				break
			}
		}
	}
	return m, nil
}

func (xpc *XPConnect) sendDatarefSubscription() error {
	reqID := requestCounter.Add(1)

	subs := make([]xpapimodel.SubDataref, 0, len(xpc.index))
	for id := range xpc.index {
		subs = append(subs, xpapimodel.SubDataref{ID: id})
	}

	request := xpapimodel.DatarefSubscriptionRequest{
		RequestID: reqID,
		Type:      "dataref_subscribe_values",
		Params:    xpapimodel.ParamDatarefs{Datarefs: subs},
	}
	if err := util.SendJSON(xpc.conn, request); err != nil {
		return fmt.Errorf("error sending subscription request: %w", err)
	}
	logrus.WithField("reqId", reqID).Info("dataref subscription sent")
	return nil
}

// processMessage handles one incoming websocket frame.
func (xpc *XPConnect) processMessage(message []byte) {
	var response xpapimodel.SubscriptionResponse
	if err := json.Unmarshal(message, &response); err != nil {
		logrus.WithError(err).Warnf("unparseable message: %s", string(message))
		return
	}

	switch response.Type {
	case "dataref_update_values":
		xpc.handleDatarefUpdate(response.Data)
	case "result":
		if !response.Success {
			logrus.WithField("reqId", response.RequestID).Error("subscription request rejected")
		}
	default:
		logrus.WithField("type", response.Type).Debug("ignoring message")
	}
}

func (xpc *XPConnect) handleDatarefUpdate(values map[string]any) {
	for id, value := range values {
		idInt, err := strconv.Atoi(id)
		if err != nil {
			logrus.WithField("id", id).Warn("non-numeric dataref id in update")
			continue
		}
		dr, exists := xpc.index[idInt]
		if !exists {
			continue
		}
		dr.Value = decode(dr.DecodedDataType, value)
	}
	xpc.publishSample()
}

// decode normalizes a raw JSON value per the expected dataref shape.
func decode(dataType string, value any) any {
	if dataType != "float_array" {
		return value
	}
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	floats := make([]float64, 0, len(raw))
	for _, elem := range raw {
		f, ok := elem.(float64)
		if !ok {
			return nil
		}
		floats = append(floats, f)
	}
	return floats
}

// publishSample assembles a normalized sample from the current dataref table
// and pushes it to the sink. Any missing or mistyped value means the frame is
// dropped whole; a partial sample would corrupt the fuel and phase baselines
// downstream.
func (xpc *XPConnect) publishSample() {
	scalar := func(name string) (float64, bool) {
		dr := xpc.byName(name)
		if dr == nil {
			return 0, false
		}
		f, ok := dr.Value.(float64)
		return f, ok
	}

	lat, okLat := scalar(drLatitude)
	lon, okLon := scalar(drLongitude)
	elev, okElev := scalar(drElevation)
	gs, okGS := scalar(drGroundSpeed)
	vs, okVS := scalar(drVerticalFPM)
	fuel, okFuel := scalar(drFuelTotal)
	onGround, okGround := scalar(drOnGround)
	brake, okBrake := scalar(drParkingBrake)
	gear, okGear := scalar(drGearHandle)

	if !okLat || !okLon || !okElev || !okGS || !okVS || !okFuel || !okGround || !okBrake || !okGear {
		return
	}

	enginesDR := xpc.byName(drEngines)
	if enginesDR == nil {
		return
	}
	engines, ok := enginesDR.Value.([]float64)
	if !ok {
		return
	}
	running := false
	for _, e := range engines {
		if e > 0 {
			running = true
			break
		}
	}

	xpc.sink.SubmitTelemetry(model.TelemetrySample{
		Altitude:      elev * metersToFeet,
		GroundSpeed:   gs * mpsToKnots,
		VerticalSpeed: vs,
		TotalFuel:     fuel * kgToLbs,
		Latitude:      lat,
		Longitude:     lon,
		OnGround:      onGround > 0,
		EnginesOn:     running,
		ParkingBrake:  brake > 0.5,
		GearDown:      gear > 0,
		Connected:     true,
	})
}

func (xpc *XPConnect) byName(name string) *xpapimodel.Dataref {
	for _, dr := range xpc.index {
		if dr.Name == name {
			return dr
		}
	}
	return nil
}

// buildURLWithFilters constructs the index-lookup URL with one filter[name]
// parameter per dataref.
func buildURLWithFilters(urlStr string, drefs []xpapimodel.Dataref) (string, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("error parsing base URL: %w", err)
	}
	q := u.Query()
	for _, dataref := range drefs {
		q.Add("filter[name]", dataref.Name)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
