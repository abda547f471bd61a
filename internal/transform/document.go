// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package transform

import "time"

// FlightDocument is the stored shape of one flight record.
type FlightDocument struct {
	FlightInfo  FlightInfo  `bson:"flight_info" json:"flight_info"`
	AirportInfo AirportInfo `bson:"airport_info" json:"airport_info"`
	DelayInfo   DelayInfo   `bson:"delay_info" json:"delay_info"`
	StatusFlags StatusFlags `bson:"status_flags" json:"status_flags"`
	Metadata    Metadata    `bson:"metadata" json:"metadata"`
}

type FlightInfo struct {
	FlightNumber string    `bson:"flight_number" json:"flight_number"`
	Airline      string    `bson:"airline" json:"airline"`
	Date         time.Time `bson:"date" json:"date"`
}

type AirportInfo struct {
	Origin      string `bson:"origin" json:"origin"`
	Destination string `bson:"destination" json:"destination"`
}

// DelayInfo holds delay minutes. TotalDelay is the arrival delay.
type DelayInfo struct {
	TotalDelay        float64 `bson:"total_delay" json:"total_delay"`
	CarrierDelay      float64 `bson:"carrier_delay" json:"carrier_delay"`
	WeatherDelay      float64 `bson:"weather_delay" json:"weather_delay"`
	NASDelay          float64 `bson:"nas_delay" json:"nas_delay"`
	SecurityDelay     float64 `bson:"security_delay" json:"security_delay"`
	LateAircraftDelay float64 `bson:"late_aircraft_delay" json:"late_aircraft_delay"`
}

type StatusFlags struct {
	Cancelled bool `bson:"cancelled" json:"cancelled"`
	Diverted  bool `bson:"diverted" json:"diverted"`
}

// Metadata timestamps are set when the document is built.
type Metadata struct {
	InsertedAt  time.Time `bson:"inserted_at" json:"inserted_at"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
}
