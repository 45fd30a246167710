package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// JSONFloat is a float64 that survives JSON. Finite values are plain numbers;
// NaN and the infinities are written as the strings "NaN", "+Inf" and "-Inf".
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return json.Marshal(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *JSONFloat) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("decode float %s: %w", data, err)
	}
	*f = JSONFloat(v)
	return nil
}

func toJSONFloats(values []float64) []JSONFloat {
	if values == nil {
		return nil
	}
	out := make([]JSONFloat, len(values))
	for i, v := range values {
		out[i] = JSONFloat(v)
	}
	return out
}

func fromJSONFloats(values []JSONFloat) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

type plainNetworkRecord NetworkRecord

func (n NetworkRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainNetworkRecord
		Weights []JSONFloat `json:"weights"`
		Error   JSONFloat   `json:"error"`
	}{plainNetworkRecord(n), toJSONFloats(n.Weights), JSONFloat(n.Error)})
}

func (n *NetworkRecord) UnmarshalJSON(data []byte) error {
	aux := struct {
		*plainNetworkRecord
		Weights []JSONFloat `json:"weights"`
		Error   JSONFloat   `json:"error"`
	}{plainNetworkRecord: (*plainNetworkRecord)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.Weights = fromJSONFloats(aux.Weights)
	n.Error = float64(aux.Error)
	return nil
}

type plainRunRecord RunRecord

func (r RunRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainRunRecord
		KillRate    JSONFloat `json:"kill_rate"`
		TargetError JSONFloat `json:"target_error"`
		BestError   JSONFloat `json:"best_error"`
	}{plainRunRecord(r), JSONFloat(r.KillRate), JSONFloat(r.TargetError), JSONFloat(r.BestError)})
}

func (r *RunRecord) UnmarshalJSON(data []byte) error {
	aux := struct {
		*plainRunRecord
		KillRate    JSONFloat `json:"kill_rate"`
		TargetError JSONFloat `json:"target_error"`
		BestError   JSONFloat `json:"best_error"`
	}{plainRunRecord: (*plainRunRecord)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.KillRate = float64(aux.KillRate)
	r.TargetError = float64(aux.TargetError)
	r.BestError = float64(aux.BestError)
	return nil
}
