package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

// ErrNoFix is returned when the GPS output contains no usable position.
var ErrNoFix = errors.New("no valid GPS data found")

// openPort opens the serial device. Replaced in tests.
var openPort = func(c *serial.Config) (io.ReadCloser, error) {
	return serial.OpenPort(c)
}

// DeviceSensorProvider is responsible for retrieving location data from a GPS device connected via serial port.
type DeviceSensorProvider struct {
	port        string        // Serial port to which the GPS device is connected
	baudRate    int           // Baud rate for the serial communication
	readTimeout time.Duration // Longest wait for a single read
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int) *DeviceSensorProvider {
	return &DeviceSensorProvider{
		port:        port,
		baudRate:    baudRate,
		readTimeout: 2 * time.Second,
	}
}

// GetLocation reads GPS data from the device and returns the first fix found.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Location, error) {
	s, err := openPort(&serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: d.readTimeout})
	if err != nil {
		return Location{}, fmt.Errorf("failed to open GPS device %s: %w", d.port, err)
	}

	// closing the port unblocks a pending read when ctx ends first
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		s.Close()
	}()

	loc, err := readFix(s)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Location{}, ctxErr
	}
	return loc, err
}

// Close is a no-op: the port is only held during GetLocation.
func (d *DeviceSensorProvider) Close() error {
	return nil
}

// readFix scans NMEA sentences until it finds a GGA or RMC sentence carrying a valid fix.
func readFix(r io.Reader) (Location, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// partial lines are common right after the port opens
			continue
		}

		switch s := sentence.(type) {
		case nmea.GGA:
			if s.FixQuality == nmea.Invalid {
				continue
			}
			return Location{Latitude: s.Latitude, Longitude: s.Longitude, Accuracy: s.HDOP}, nil
		case nmea.RMC:
			if s.Validity != nmea.ValidRMC {
				continue
			}
			return Location{Latitude: s.Latitude, Longitude: s.Longitude}, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return Location{}, fmt.Errorf("failed to read GPS data: %w", err)
	}
	return Location{}, ErrNoFix
}
