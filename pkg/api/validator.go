package api

import "errors"

// Validator - интерфейс, который могут реализовать DTO
type Validator interface {
	Validate() error
}

func (p MovePayload) Validate() error {
	if p.Agent == "" {
		return errors.New("agent is required")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return errors.New("latitude out of range")
	}
	if p.Lon < -180 || p.Lon > 180 {
		return errors.New("longitude out of range")
	}
	return nil
}

func (p MoveCellPayload) Validate() error {
	if p.Agent == "" {
		return errors.New("agent is required")
	}
	if p.Row < 0 || p.Col < 0 {
		return errors.New("cell coordinates cannot be negative")
	}
	return nil
}

func (p AutoPayload) Validate() error {
	if p.Agent == "" {
		return errors.New("agent is required")
	}
	return nil
}
