package protocol

import (
	"errors"
	"time"
)

// ErrEmptyName is returned when a payload's Name field is empty.
var ErrEmptyName = errors.New("EmptyName")

// ErrInvalidRI6 is returned when RI6 is present but not one of the allowed band values.
type ErrInvalidRI6 struct {
	Value uint8
}

func (e *ErrInvalidRI6) Error() string { return "InvalidRI6" }

// Is lets errors.Is match any ErrInvalidRI6 regardless of Value, since the
// wire-visible error kind name is what callers key off of.
func (e *ErrInvalidRI6) Is(target error) bool {
	_, ok := target.(*ErrInvalidRI6)
	return ok
}

// validRI6 holds the band values the modem may legitimately report, plus 0
// for "not yet registered".
var validRI6 = map[uint8]bool{0: true, 3: true, 5: true, 40: true}

// ClientPayload is a single telemetry event. Name is mandatory; DT is
// filled in by the daemon when absent. Every other field is optional and
// grouped by the tag prefix the device platform uses: device identity
// (DI), location (LI), system (SI/TI), radio (RI/NI/OI), voice (VI),
// data volumes (HI), event markers (NE), counters (NC).
type ClientPayload struct {
	Name string  `json:"Name"`
	DT   *string `json:"DT,omitempty"`

	DI1 *string `json:"DI1,omitempty"` // IMEI of the device
	DI2 *string `json:"DI2,omitempty"` // IMSI of the SIM used
	DI3 *string `json:"DI3,omitempty"` // MSISDN of the device
	DI4 *string `json:"DI4,omitempty"` // Phone model reporting the data set
	DI5 *string `json:"DI5,omitempty"` // SW version used in the device

	LI1 *uint32  `json:"LI1,omitempty"` // MCC/MNC
	LI2 *uint32  `json:"LI2,omitempty"` // Tracking Area Code as seen by the device
	LI3 *uint32  `json:"LI3,omitempty"` // Global Cell identifier
	LI4 *uint16  `json:"LI4,omitempty"` // Physical cell identifier
	LI5 *float64 `json:"LI5,omitempty"` // Latitude
	LI6 *float64 `json:"LI6,omitempty"` // Longitude
	LI7 *bool    `json:"LI7,omitempty"` // Indicates GPS collected or not
	LI8 *float64 `json:"LI8,omitempty"` // Indicates the accuracy of GPS coordinates

	SI1 *uint8 `json:"SI1,omitempty"` // Battery level of the device
	SI2 *uint8 `json:"SI2,omitempty"` // CPU usage in percentage
	SI3 *uint8 `json:"SI3,omitempty"` // Memory usage in percentage
	TI1 *int32 `json:"TI1,omitempty"` // Device temperature
	TI2 *int32 `json:"TI2,omitempty"` // Battery temperature

	RI1  *uint8          `json:"RI1,omitempty"`  // RSRP as reported by the device: -140dBm to -43dBm
	RI2  *uint8          `json:"RI2,omitempty"`  // RSRQ as reported by the device: -3dB to -20dB
	RI3  *int8           `json:"RI3,omitempty"`  // Signal to interference plus noise ratio in dB
	RI4  *uint8          `json:"RI4,omitempty"`  // Channel quality indicator as derived by the device
	RI5  *uint8          `json:"RI5,omitempty"`  // Rank indicator when MIMO used
	RI6  *uint8          `json:"RI6,omitempty"`  // Current band used by the device
	RI7  *uint16         `json:"RI7,omitempty"`  // Frequency used by the device
	RI8  *bool           `json:"RI8,omitempty"`  // Indicates if the device is out of service or in-service
	RI9  *string         `json:"RI9,omitempty"`  // Indicates the cause to initiate RRC connection
	RI10 *uint16         `json:"RI10,omitempty"` // Indicates the cause of the RRC connection release
	RI11 *int8           `json:"RI11,omitempty"` // Maximum power used for the latest RACH transmission
	RI12 *uint8          `json:"RI12,omitempty"` // Residual BLER at the physical layer
	RI13 *uint16         `json:"RI13,omitempty"` // Current timing advance used to communicate with the eNB
	RI14 *int8           `json:"RI14,omitempty"` // Transmit power of the device at the time of reading
	RI15 *[][3]uint32    `json:"RI15,omitempty"` // Neighbor cell information stored

	NI1 *bool   `json:"NI1,omitempty"` // Indicates if the device is in a roaming area or not
	NI2 *uint8  `json:"NI2,omitempty"` // Indicates the attach failure causes
	NI3 *uint8  `json:"NI3,omitempty"` // Indicates the TAC update failure causes
	NI4 *string `json:"NI4,omitempty"` // EPS bearer details

	// OI1 holds received signal time difference values (RSTD) between the
	// serving cell and up to three neighbor cells.
	OI1 *[3]float64 `json:"OI1,omitempty"`

	VI1 *string `json:"VI1,omitempty"` // The current status of SIP registration
	VI2 *uint8  `json:"VI2,omitempty"` // The reason for terminating the SIP session
	VI3 *string `json:"VI3,omitempty"` // Muting events
	VI4 *uint8  `json:"VI4,omitempty"` // RTP packet loss percentage
	VI5 *uint64 `json:"VI5,omitempty"` // Number of packets lost due to jitter loss

	HI1 *uint64 `json:"HI1,omitempty"` // The number of received data bytes
	HI2 *uint64 `json:"HI2,omitempty"` // The number of transmitted data bytes

	NE1  *string `json:"NE1,omitempty"`  // Call trigger
	NE2  *string `json:"NE2,omitempty"`  // Call attempt failure
	NE3  *string `json:"NE3,omitempty"`  // Call established
	NE4  *string `json:"NE4,omitempty"`  // Call disconnect
	NE5  *string `json:"NE5,omitempty"`  // Call drop
	NE6  *string `json:"NE6,omitempty"`  // Call muting
	NE7  *string `json:"NE7,omitempty"`  // SMS sent
	NE8  *string `json:"NE8,omitempty"`  // SMS received
	NE9  *string `json:"NE9,omitempty"`  // VoLTE registration event
	NE10 *string `json:"NE10,omitempty"` // VoLTE connection lost
	NE11 *string `json:"NE11,omitempty"` // Autonomous data collector event
	NE12 *string `json:"NE12,omitempty"` // Out of service
	NE13 *string `json:"NE13,omitempty"` // In service
	NE14 *string `json:"NE14,omitempty"` // ATTACH failure
	NE15 *string `json:"NE15,omitempty"` // TAC update
	NE16 *string `json:"NE16,omitempty"` // RSRP < -110dBm
	NE17 *string `json:"NE17,omitempty"` // RRC connection release
	NE18 *string `json:"NE18,omitempty"` // RRC connection failure
	NE19 *string `json:"NE19,omitempty"` // Radio link failure
	NE20 *string `json:"NE20,omitempty"` // Intra frequency handover
	NE21 *string `json:"NE21,omitempty"` // Inter frequency handover
	NE22 *string `json:"NE22,omitempty"` // Inter band handover
	NE23 *string `json:"NE23,omitempty"` // Cell reselection
	NE24 *string `json:"NE24,omitempty"` // RACH failure
	NE25 *string `json:"NE25,omitempty"` // Data pause or recoverable data stall
	NE26 *string `json:"NE26,omitempty"` // Non-recoverable data stall

	NC1 *uint32 `json:"NC1,omitempty"` // Number of outgoing calls
	NC2 *uint32 `json:"NC2,omitempty"` // Number of incoming calls
	NC3 *uint32 `json:"NC3,omitempty"` // Number of call attempt failures
	NC4 *uint32 `json:"NC4,omitempty"` // Number of call drops
	NC5 *uint32 `json:"NC5,omitempty"` // Number of data sessions
	NC6 *uint32 `json:"NC6,omitempty"` // Number of data session attempts failed
	NC7 *uint32 `json:"NC7,omitempty"` // Number of ATTACHs
	NC8 *uint32 `json:"NC8,omitempty"` // Number of ATTACH failures
	NC9 *uint32 `json:"NC9,omitempty"` // Number of DETACHs
}

// nowFunc is overridden in tests to pin the DT default.
var nowFunc = time.Now

// Validate returns a validated copy of p with DT defaulted, or an error
// naming the first rule the payload violates.
func (p ClientPayload) Validate() (ClientPayload, error) {
	if p.Name == "" {
		return ClientPayload{}, ErrEmptyName
	}

	if p.RI6 != nil && !validRI6[*p.RI6] {
		return ClientPayload{}, &ErrInvalidRI6{Value: *p.RI6}
	}

	if p.DT == nil {
		dt := nowFunc().UTC().Truncate(time.Second).Format(time.RFC3339)
		p.DT = &dt
	}

	return p, nil
}
