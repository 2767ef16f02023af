//go:build !js

package pipeline

import (
	"github.com/lucasjlepore/cycleroute/weather"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// marshalForecastParquet renders the forecast table in memory.
func marshalForecastParquet(points []weather.WeatherPoint) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := writeForecastRows(fw, points); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// writeForecastParquet streams the forecast table straight to path.
func writeForecastParquet(path string, points []weather.WeatherPoint) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	if err := writeForecastRows(fw, points); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func writeForecastRows(fw source.ParquetFile, points []weather.WeatherPoint) error {
	pw, err := writer.NewParquetWriter(fw, new(forecastParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, p := range points {
		if err := pw.Write(forecastRow(p)); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}
