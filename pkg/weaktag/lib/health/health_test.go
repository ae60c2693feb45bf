// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package health

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterAndCount(t *testing.T) {
	m := NewMetrics()
	m.InstancesRead.Add(3)
	m.ReadCorrections.Inc()
	m.LastMicroF1.Set(0.75)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, fam := range families {
		require.Len(t, fam.GetMetric(), 1)
		metric := fam.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[fam.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[fam.GetName()] = metric.GetGauge().GetValue()
		}
	}

	assert.Equal(t, 3.0, values["weaktag_instances_read_total"])
	assert.Equal(t, 1.0, values["weaktag_read_corrections_total"])
	assert.Equal(t, 0.75, values["weaktag_last_micro_f1"])
	assert.Contains(t, values, "weaktag_batches_forwarded_total")
	assert.Contains(t, values, "weaktag_predictions_decoded_total")
	assert.Contains(t, values, "weaktag_last_loss")
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerEndpoints(t *testing.T) {
	m := NewMetrics()
	s, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Metrics: m})
	require.NoError(t, err)
	s.Start()
	defer s.Shutdown(context.Background())
	base := "http://" + s.Addr()

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ok")

	code, _ = get(t, base+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s.SetReady(true)
	code, _ = get(t, base+"/readyz")
	assert.Equal(t, http.StatusOK, code)

	m.PredictionsDecoded.Add(7)
	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "weaktag_predictions_decoded_total 7")
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(ServerConfig{Metrics: NewMetrics()})
	require.Error(t, err)
	_, err = NewServer(ServerConfig{Addr: ":0"})
	require.Error(t, err)
}
