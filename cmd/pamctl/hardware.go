package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/san-kum/pamjoint/internal/config"
	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/hal/as5600"
	"github.com/san-kum/pamjoint/internal/hal/mux"
	"github.com/san-kum/pamjoint/internal/hal/pressure"
	pumphw "github.com/san-kum/pamjoint/internal/hal/pump"
	"github.com/san-kum/pamjoint/internal/hal/valve"
)

// hardware is the joint rig on a Raspberry Pi: an AS5600 behind one mux,
// the pressure transducers behind another, four PWM valves and the pump.
type hardware struct {
	angle    *as5600.Sensor
	pressure *pressure.Transducer
	valves   *valve.Bank
	pump     *pumphw.Hardware
	logger   *log.Logger
}

func openHardware(cfg config.HardwareConfig, logger *log.Logger) (*hardware, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("gpio: %w", err)
	}

	angleMux := mux.NewGPIO(cfg.AngleMux[0], cfg.AngleMux[1], cfg.AngleMux[2])
	pressureMux := mux.NewGPIO(cfg.PressureMux[0], cfg.PressureMux[1], cfg.PressureMux[2])

	// valves first so the muscles are vented before anything else can fail
	hw := &hardware{
		valves: valve.NewGPIO(cfg.Valves),
		pump:   pumphw.NewGPIO(cfg.RelayPin, cfg.SwitchPin),
		logger: logger,
	}

	angle, err := as5600.Open(cfg.I2CDevice, angleMux)
	if err != nil {
		hw.Close()
		return nil, err
	}
	hw.angle = angle

	transducer, err := pressure.Open(cfg.SerialPort, pressureMux)
	if err != nil {
		hw.Close()
		return nil, err
	}
	hw.pressure = transducer

	logger.Info("hardware ready",
		"i2c", cfg.I2CDevice,
		"serial", cfg.SerialPort,
		"valves", cfg.Valves,
		"relay", cfg.RelayPin,
		"switch", cfg.SwitchPin,
	)
	return hw, nil
}

func (h *hardware) devices() cycle.Devices {
	return cycle.Devices{Angle: h.angle, Pressure: h.pressure, Actuator: h.valves}
}

// Close shuts every valve, stops the compressor and releases the buses.
func (h *hardware) Close() error {
	var errs []error
	if err := h.valves.CloseAll(); err != nil {
		errs = append(errs, fmt.Errorf("valves: %w", err))
	}
	if err := h.pump.SetRelay(false); err != nil {
		errs = append(errs, fmt.Errorf("pump: %w", err))
	}
	if h.angle != nil {
		errs = append(errs, h.angle.Close())
	}
	if h.pressure != nil {
		errs = append(errs, h.pressure.Close())
	}
	errs = append(errs, rpio.Close())

	err := errors.Join(errs...)
	if err != nil {
		h.logger.Error("hardware shutdown", "err", err)
	}
	return err
}
