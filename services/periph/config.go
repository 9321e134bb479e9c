// services/periph/config.go
package periph

import (
	"bytes"
	"encoding/json"

	"blockboard-go/errcode"
)

// Document is the peripheral configuration as supplied by the user. Field
// names are part of the stored-blob contract and must not change. Every
// section is optional; absent sections mean no peripherals of that kind.
type Document struct {
	I2C *I2CInfo `json:"i2c,omitempty"`

	DigitalIns  []DigitalIO `json:"digital_ins,omitempty"`
	DigitalOuts []DigitalIO `json:"digital_outs,omitempty"`

	Motors      []MotorDecl      `json:"motors,omitempty"`
	MotorGroups []MotorGroupDecl `json:"motor_groups,omitempty"`

	HCSR04s []HCSR04Decl `json:"hcsr04s,omitempty"`

	MAX30205s   []BasicI2C `json:"max30205s,omitempty"`
	IS31FL3741s []BasicI2C `json:"is31fl3741s,omitempty"`
	BMP388s     []BasicI2C `json:"bmp388s,omitempty"`
	LIS3DHs     []BasicI2C `json:"lis3dhs,omitempty"`
	VEML7700s   []BasicI2C `json:"veml7700s,omitempty"`
}

// I2CInfo names the bus pins. At most one bus per boot.
type I2CInfo struct {
	SDA int `json:"gpio_sda"`
	SCL int `json:"gpio_scl"`
}

// DigitalIO declares a single-pin input or output. Negated inverts the
// level at the read or write boundary.
type DigitalIO struct {
	Name    string `json:"name"`
	GPIO    int    `json:"gpio"`
	Negated bool   `json:"negated"`
}

// MotorDecl declares an h-bridge motor driven by a PWM pin pair.
type MotorDecl struct {
	Name    string `json:"name"`
	GPIOPos int    `json:"gpio_pos"`
	GPIONeg int    `json:"gpio_neg"`
}

// MotorGroupDecl declares a named set of motors driven together.
type MotorGroupDecl struct {
	Name   string   `json:"name"`
	Motors []string `json:"motors"`
}

// HCSR04Decl declares an ultrasonic ranger on a trigger/echo pin pair.
type HCSR04Decl struct {
	Name        string `json:"name"`
	GPIOTrigger int    `json:"gpio_trigger"`
	GPIOEcho    int    `json:"gpio_echo"`
}

// BasicI2C declares an I²C peripheral that only needs a bus address.
type BasicI2C struct {
	Name    string `json:"name"`
	I2CAddr uint8  `json:"i2c_addr"`
}

// ParseDocument decodes a configuration document, rejecting unknown fields
// and trailing garbage so typos fail loudly instead of being ignored.
func ParseDocument(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &errcode.E{C: errcode.ParseError, Op: "periph.ParseDocument", Err: err}
	}
	if dec.More() {
		return nil, &errcode.E{C: errcode.ParseError, Op: "periph.ParseDocument", Msg: "trailing data after document"}
	}
	return &doc, nil
}
