package detector

import (
	"scootspot/internal/types"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestEvalAny(t *testing.T) {
	obj := decode(t, `{"key1":"value1","key2":{"sub":42},"key3":["a","b"],"key4":null}`)

	v, err := EvalAny("key1", obj)
	assert.NoError(t, err)
	assert.Equal(t, "value1", v)

	v, err = EvalAny("key2.sub", obj)
	assert.NoError(t, err)
	assert.Equal(t, float64(42), v)

	v, err = EvalAny("key3[1]", obj)
	assert.NoError(t, err)
	assert.Equal(t, "b", v)

	v, err = EvalAny("nonexistent", obj)
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = EvalAny("key1[", obj)
	assert.Error(t, err)
}

func TestCountsFromDetections(t *testing.T) {
	payload := decode(t, `{"detections":[
		{"class":"electric_scooter","confidence":0.91},
		{"class":"electric_scooter","confidence":0.77},
		{"class":"bicycle","confidence":0.5},
		{"class":"bicycle","confidence":0.49},
		{"class":"person","confidence":0.99}
	]}`)

	counts, err := CountsFromResult(DetectionsExpr(types.MinConfidence), payload)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[types.ClassElectricScooter])
	assert.Equal(t, 1, counts[types.ClassBicycle])
	assert.Equal(t, 3, counts.Total())
	assert.NotContains(t, counts, "person")
}

func TestCountsFromLegacyShape(t *testing.T) {
	payload := decode(t, `{"electric_scooters":2,"bicycles":1}`)

	counts, err := CountsFromResult(CounterCountsExpr, payload)
	require.NoError(t, err)
	assert.Equal(t, types.Counts{types.ClassElectricScooter: 2, types.ClassBicycle: 1}, counts)
}

func TestCountsFromEmptyResult(t *testing.T) {
	counts, err := CountsFromResult(DetectionsExpr(0.5), decode(t, `{"detections":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total())

	counts, err = CountsFromResult(CounterCountsExpr, decode(t, `{"electric_scooters":0,"bicycles":0}`))
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total())
}

func TestCountsFromMismatchedShape(t *testing.T) {
	_, err := CountsFromResult(DetectionsExpr(0.5), decode(t, `{}`))
	assert.Error(t, err)

	_, err = CountsFromResult(DetectionsExpr(0.5), decode(t, `{"electric_scooters":2,"bicycles":1}`))
	assert.Error(t, err)

	_, err = CountsFromResult(CounterCountsExpr, decode(t, `{"detections":[{"class":"bicycle","confidence":0.9}]}`))
	assert.Error(t, err)

	_, err = CountsFromResult(CounterCountsExpr, decode(t, `{"electric_scooters":2}`))
	assert.Error(t, err)
}

func TestCountsFromUnexpectedShape(t *testing.T) {
	_, err := CountsFromResult("value", decode(t, `{"value":"abc"}`))
	assert.Error(t, err)

	_, err = CountsFromResult("labels", decode(t, `{"labels":[1,2]}`))
	assert.Error(t, err)

	_, err = CountsFromResult(CounterCountsExpr, decode(t, `{"electric_scooters":1.5,"bicycles":0}`))
	assert.Error(t, err)
}
