package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrStationNotFound is returned when ECCC has no data for the requested station.
var ErrStationNotFound = errors.New("station not found")

// Station identifies an ECCC climate station.
type Station struct {
	ID   int
	Name string
}

// Default stations for Toronto collisions.
var (
	PearsonAirport    = Station{ID: 51459, Name: "Pearson Airport"}
	CityCentreAirport = Station{ID: 48549, Name: "City Centre Airport"}
)

func (s Station) String() string {
	if s.Name == "" {
		return fmt.Sprintf("station %d", s.ID)
	}
	return fmt.Sprintf("%s (ID: %d)", s.Name, s.ID)
}

// StationMonth is the unit of download: hourly data is served one month at a time.
type StationMonth struct {
	Station Station
	Year    int
	Month   int
}

func (m StationMonth) String() string {
	return fmt.Sprintf("%d %04d-%02d", m.Station.ID, m.Year, m.Month)
}

// StationMonths lists every month from January of startYear through December
// of endYear, in chronological order. It returns nil when endYear < startYear.
func StationMonths(station Station, startYear, endYear int) []StationMonth {
	if endYear < startYear {
		return nil
	}
	months := make([]StationMonth, 0, (endYear-startYear+1)*12)
	for year := startYear; year <= endYear; year++ {
		for month := 1; month <= 12; month++ {
			months = append(months, StationMonth{Station: station, Year: year, Month: month})
		}
	}
	return months
}

// StationFetcher downloads the raw hourly CSV payload for one station-month.
type StationFetcher interface {
	FetchMonth(ctx context.Context, month StationMonth) ([]byte, error)
}
