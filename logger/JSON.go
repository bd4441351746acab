package logger

import (
	"encoding/json"
	"math"
	"os"
)

// JSONName is the name of the JSONWriter
const JSONName = "json"

// JSONWriter writes one JSON object per dump, one object per line.
// Values that are not finite are written as null.
type JSONWriter struct {
	file *os.File
	enc  *json.Encoder
}

// NewJSONWriter returns a new JSONWriter writing to filename
func NewJSONWriter(filename string) (*JSONWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{file: file, enc: json.NewEncoder(file)}, nil
}

// Name implements the Writer interface
func (j *JSONWriter) Name() string {
	return JSONName
}

// Write implements the Writer interface
func (j *JSONWriter) Write(step int, keys []string,
	values map[string]float64) error {
	obj := make(map[string]interface{}, len(keys)+1)
	obj["step"] = step
	for _, key := range keys {
		v := values[key]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			obj[key] = nil
		} else {
			obj[key] = v
		}
	}
	return j.enc.Encode(obj)
}

// Close implements the Writer interface
func (j *JSONWriter) Close() error {
	return j.file.Close()
}
