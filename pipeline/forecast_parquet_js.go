//go:build js

package pipeline

import (
	"errors"

	"github.com/lucasjlepore/cycleroute/weather"
)

var errParquetUnavailable = errors.New("parquet output is not available in the browser build (use csv)")

func marshalForecastParquet([]weather.WeatherPoint) ([]byte, error) {
	return nil, errParquetUnavailable
}

func writeForecastParquet(string, []weather.WeatherPoint) error {
	return errParquetUnavailable
}
