package opensky

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// statesResponse is the /states/all envelope. Each state is a positional array.
type statesResponse struct {
	Time   int64             `json:"time"`
	States []json.RawMessage `json:"states"`
}

// Decoded is the result of decoding one /states/all response.
type Decoded struct {
	// Time is the feed timestamp the states belong to
	Time int64

	States []StateVector

	// Skipped counts rows that could not be decoded
	Skipped int
}

// DecodeStates decodes an OpenSky /states/all response body.
// Rows that are malformed are skipped and counted rather than failing the batch.
func DecodeStates(r io.Reader) (Decoded, error) {
	var resp statesResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return Decoded{}, fmt.Errorf("failed to parse states response: %w", err)
	}

	out := Decoded{
		Time:   resp.Time,
		States: make([]StateVector, 0, len(resp.States)),
	}
	for _, raw := range resp.States {
		sv, err := decodeStateRow(raw)
		if err != nil {
			out.Skipped++
			continue
		}
		out.States = append(out.States, sv)
	}
	return out, nil
}

// decodeStateRow decodes one positional state array (17 or 18 elements).
func decodeStateRow(raw json.RawMessage) (StateVector, error) {
	var row []json.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil {
		return StateVector{}, err
	}
	if len(row) < 17 {
		return StateVector{}, fmt.Errorf("state row has %d fields, want at least 17", len(row))
	}

	var sv StateVector
	var icao24 string
	if err := json.Unmarshal(row[0], &icao24); err != nil || icao24 == "" {
		return StateVector{}, fmt.Errorf("state row has no icao24")
	}
	sv.ICAO24 = strings.ToLower(strings.TrimSpace(icao24))

	var err error
	if sv.Callsign, err = optString(row[1]); err != nil {
		return StateVector{}, fmt.Errorf("callsign: %w", err)
	}
	if sv.Callsign != nil {
		trimmed := strings.TrimSpace(*sv.Callsign)
		if trimmed == "" {
			sv.Callsign = nil
		} else {
			sv.Callsign = &trimmed
		}
	}
	if err := json.Unmarshal(row[2], &sv.OriginCountry); err != nil {
		return StateVector{}, fmt.Errorf("origin_country: %w", err)
	}
	if sv.TimePosition, err = optInt(row[3]); err != nil {
		return StateVector{}, fmt.Errorf("time_position: %w", err)
	}
	if sv.LastContact, err = optInt(row[4]); err != nil {
		return StateVector{}, fmt.Errorf("last_contact: %w", err)
	}

	floats := []struct {
		dst  **float64
		idx  int
		name string
	}{
		{&sv.Longitude, 5, "longitude"},
		{&sv.Latitude, 6, "latitude"},
		{&sv.BaroAltitude, 7, "baro_altitude"},
		{&sv.Velocity, 9, "velocity"},
		{&sv.TrueTrack, 10, "true_track"},
		{&sv.VerticalRate, 11, "vertical_rate"},
		{&sv.GeoAltitude, 13, "geo_altitude"},
	}
	for _, f := range floats {
		if *f.dst, err = optFloat(row[f.idx]); err != nil {
			return StateVector{}, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	if err := json.Unmarshal(row[8], &sv.OnGround); err != nil {
		return StateVector{}, fmt.Errorf("on_ground: %w", err)
	}
	if !isNull(row[12]) {
		if err := json.Unmarshal(row[12], &sv.Sensors); err != nil {
			return StateVector{}, fmt.Errorf("sensors: %w", err)
		}
	}
	if sv.Squawk, err = optString(row[14]); err != nil {
		return StateVector{}, fmt.Errorf("squawk: %w", err)
	}
	if err := json.Unmarshal(row[15], &sv.SPI); err != nil {
		return StateVector{}, fmt.Errorf("spi: %w", err)
	}
	if err := json.Unmarshal(row[16], &sv.PositionSource); err != nil {
		return StateVector{}, fmt.Errorf("position_source: %w", err)
	}
	if len(row) > 17 && !isNull(row[17]) {
		if err := json.Unmarshal(row[17], &sv.Category); err != nil {
			return StateVector{}, fmt.Errorf("category: %w", err)
		}
	}

	return sv, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func optString(raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func optFloat(raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// optInt accepts integral JSON numbers, which the feed sometimes sends as floats.
func optInt(raw json.RawMessage) (*int64, error) {
	f, err := optFloat(raw)
	if err != nil || f == nil {
		return nil, err
	}
	v := int64(*f)
	return &v, nil
}
