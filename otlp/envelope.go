package otlp

// LogsEnvelope is the subset of the OTLP logs JSON shape this bridge
// consumes: resourceLogs[].scopeLogs[].logRecords[].
type LogsEnvelope struct {
	ResourceLogs []struct {
		ScopeLogs []struct {
			LogRecords []rawLogRecord `json:"logRecords"`
		} `json:"scopeLogs"`
	} `json:"resourceLogs"`
}

type rawLogRecord struct {
	TimeUnixNano jsonInt `json:"timeUnixNano"`
	Body         struct {
		StringValue string `json:"stringValue"`
	} `json:"body"`
	Attributes []rawKeyValue `json:"attributes"`
}

// LogRecord is a decoded OTLP log record.
type LogRecord struct {
	TimeUnixNano int64
	Body         string
	Attributes   Bag
}

// Records flattens the resource/scope nesting into a single decoded list.
func (e *LogsEnvelope) Records() []LogRecord {
	var out []LogRecord
	for _, rl := range e.ResourceLogs {
		for _, sl := range rl.ScopeLogs {
			for _, lr := range sl.LogRecords {
				out = append(out, LogRecord{
					TimeUnixNano: int64(lr.TimeUnixNano),
					Body:         lr.Body.StringValue,
					Attributes:   decodeBag(lr.Attributes),
				})
			}
		}
	}
	return out
}

// MetricsEnvelope is the subset of the OTLP metrics JSON shape this
// bridge consumes: resourceMetrics[].scopeMetrics[].metrics[].
type MetricsEnvelope struct {
	ResourceMetrics []struct {
		ScopeMetrics []struct {
			Metrics []rawMetric `json:"metrics"`
		} `json:"scopeMetrics"`
	} `json:"resourceMetrics"`
}

type rawMetric struct {
	Name  string          `json:"name"`
	Sum   *rawDataPoints  `json:"sum"`
	Gauge *rawDataPoints  `json:"gauge"`
}

type rawDataPoints struct {
	DataPoints []rawDataPoint `json:"dataPoints"`
}

type rawDataPoint struct {
	Attributes   []rawKeyValue `json:"attributes"`
	TimeUnixNano jsonInt       `json:"timeUnixNano"`
	AsDouble     *float64      `json:"asDouble"`
	AsInt        *jsonInt      `json:"asInt"`
}

// DataPoint is a decoded OTLP metric sample with its owning metric name.
type DataPoint struct {
	MetricName   string
	TimeUnixNano int64
	Attributes   Bag
	Value        float64
}

// DataPoints flattens the resource/scope/metric nesting into a single
// decoded list of datapoints, each carrying its metric name.
func (e *MetricsEnvelope) DataPoints() []DataPoint {
	var out []DataPoint
	for _, rm := range e.ResourceMetrics {
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				points := m.Sum
				if points == nil {
					points = m.Gauge
				}
				if points == nil {
					continue
				}
				for _, dp := range points.DataPoints {
					v := 0.0
					switch {
					case dp.AsDouble != nil:
						v = *dp.AsDouble
					case dp.AsInt != nil:
						v = float64(*dp.AsInt)
					}
					out = append(out, DataPoint{
						MetricName:   m.Name,
						TimeUnixNano: int64(dp.TimeUnixNano),
						Attributes:   decodeBag(dp.Attributes),
						Value:        v,
					})
				}
			}
		}
	}
	return out
}
