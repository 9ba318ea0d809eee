package spanslide

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/ronlev/spanslide/pkg/spanslide/util"
)

// SerialFeed reads drag samples off a serial line, one per message. A
// hardware controller (or anything else on the port) reports drags as
// `widget|thumb|offset|width` followed by CRLF: widget id, 0 for the lower
// thumb or 1 for the upper, signed pointer offset from the track midpoint
// in layout pixels, and the track width in the same units.
type SerialFeed struct {
	spanslide *Spanslide
	logger    *zap.SugaredLogger

	stopChannel chan bool
	connected   bool
	connOptions serial.OpenOptions
	conn        io.ReadWriteCloser

	dragConsumers []chan DragEvent
}

// lines that don't look like drag messages are dropped before parsing, so
// line noise and bootloader chatter never make it into the pipeline
var expectedLinePattern = regexp.MustCompile(`^\d{1,2}\|[01]\|-?\d{1,5}\|\d{1,5}\r\n$`)

// NewSerialFeed creates a SerialFeed instance that uses the provided spanslide
// instance's connection info to establish communications with the controller
func NewSerialFeed(spanslide *Spanslide, logger *zap.SugaredLogger) (*SerialFeed, error) {
	logger = logger.Named("serial")

	sf := &SerialFeed{
		spanslide:     spanslide,
		logger:        logger,
		stopChannel:   make(chan bool),
		connected:     false,
		conn:          nil,
		dragConsumers: []chan DragEvent{},
	}

	logger.Debug("Created serial feed instance")

	// respond to config changes
	sf.setupOnConfigReload()

	return sf, nil
}

// Start attempts to connect to the controller
func (sf *SerialFeed) Start() error {

	// don't allow multiple concurrent connections
	if sf.connected {
		sf.logger.Warn("Already connected, can't start another without closing first")
		return errors.New("serial: connection already active")
	}

	// set minimum read size according to platform (0 for windows, 1 for linux)
	// this prevents a rare bug on windows where serial reads get congested,
	// resulting in significant lag
	minimumReadSize := 0
	if util.Linux() {
		minimumReadSize = 1
	}

	sf.connOptions = serial.OpenOptions{
		PortName:        sf.spanslide.config.ConnectionInfo.COMPort,
		BaudRate:        uint(sf.spanslide.config.ConnectionInfo.BaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: uint(minimumReadSize),
	}

	sf.logger.Debugw("Attempting serial connection",
		"comPort", sf.connOptions.PortName,
		"baudRate", sf.connOptions.BaudRate,
		"minReadSize", minimumReadSize)

	var err error
	sf.conn, err = serial.Open(sf.connOptions)
	if err != nil {

		// might need a user notification here, TBD
		sf.logger.Warnw("Failed to open serial connection", "error", err)
		return fmt.Errorf("open serial connection: %w", err)
	}

	namedLogger := sf.logger.Named(strings.ToLower(sf.connOptions.PortName))

	namedLogger.Infow("Connected", "conn", sf.conn)
	sf.connected = true

	// read lines or await a stop
	go func() {
		connReader := bufio.NewReader(sf.conn)
		lineChannel := sf.readLine(namedLogger, connReader)

		for {
			select {
			case <-sf.stopChannel:
				sf.close(namedLogger)
				return
			case line := <-lineChannel:
				sf.handleLine(namedLogger, line)
			}
		}
	}()

	return nil
}

// Stop signals us to shut down our serial connection, if one is active
func (sf *SerialFeed) Stop() {
	if sf.connected {
		sf.logger.Debug("Shutting down serial connection")
		sf.stopChannel <- true
	} else {
		sf.logger.Debug("Not currently connected, nothing to stop")
	}
}

// SubscribeToDragEvents returns an unbuffered channel that receives
// a DragEvent struct every time a valid drag message arrives
func (sf *SerialFeed) SubscribeToDragEvents() chan DragEvent {
	ch := make(chan DragEvent)
	sf.dragConsumers = append(sf.dragConsumers, ch)

	return ch
}

func (sf *SerialFeed) setupOnConfigReload() {
	configReloadedChannel := sf.spanslide.config.SubscribeToChanges()

	const stopDelay = 50 * time.Millisecond

	go func() {
		for {
			select {
			case <-configReloadedChannel:

				// if connection params have changed, attempt to stop and start the connection
				if sf.spanslide.config.ConnectionInfo.COMPort != sf.connOptions.PortName ||
					uint(sf.spanslide.config.ConnectionInfo.BaudRate) != sf.connOptions.BaudRate {

					sf.logger.Info("Detected change in connection parameters, attempting to renew connection")
					sf.Stop()

					// let the connection close
					<-time.After(stopDelay)

					if err := sf.Start(); err != nil {
						sf.logger.Warnw("Failed to renew connection after parameter change", "error", err)
					} else {
						sf.logger.Debug("Renewed connection successfully")
					}
				}
			}
		}
	}()
}

func (sf *SerialFeed) close(logger *zap.SugaredLogger) {
	if err := sf.conn.Close(); err != nil {
		logger.Warnw("Failed to close serial connection", "error", err)
	} else {
		logger.Debug("Serial connection closed")
	}

	sf.conn = nil
	sf.connected = false
}

func (sf *SerialFeed) readLine(logger *zap.SugaredLogger, reader *bufio.Reader) chan string {
	ch := make(chan string)

	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {

				if sf.spanslide.Verbose() {
					logger.Warnw("Failed to read line from serial", "error", err, "line", line)
				}

				// just ignore the line, the read loop will stop after this
				return
			}

			if sf.spanslide.Verbose() {
				logger.Debugw("Read new line", "line", line)
			}

			// deliver the line to the channel
			ch <- line
		}
	}()

	return ch
}

func (sf *SerialFeed) handleLine(logger *zap.SugaredLogger, line string) {

	// this function receives an unsanitized line which is guaranteed to end with LF,
	// but most lines will end with CRLF. it may also have garbage instead of
	// drag data, so we must check for that!
	if !expectedLinePattern.MatchString(line) {
		return
	}

	dragEvent, ok := parseDragMessage(strings.TrimSuffix(line, "\r\n"), sf.spanslide.config.InvertDirection)
	if !ok {
		if sf.spanslide.Verbose() {
			logger.Debugw("Dropping drag message with zero width", "line", line)
		}

		return
	}

	if sf.spanslide.Verbose() {
		logger.Debugw("Widget dragged", "event", dragEvent)
	}

	// deliver the drag event towards all potential consumers
	for _, consumer := range sf.dragConsumers {
		consumer <- dragEvent
	}
}
