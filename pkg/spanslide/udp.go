package spanslide

import (
	"fmt"
	"net"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// UDPFeed reads drag samples off a UDP socket, one message per packet. The
// message format is the same as the serial feed's, minus the line ending:
// `widget|thumb|offset|width`.
type UDPFeed struct {
	port int

	spanslide *Spanslide
	logger    *zap.SugaredLogger

	stopChannel chan bool

	connection *net.UDPConn

	dragConsumers []chan DragEvent
}

var expectedPacketPattern = regexp.MustCompile(`^\d{1,2}\|[01]\|-?\d{1,5}\|\d{1,5}$`)

// NewUDPFeed creates a UDPFeed instance that uses the provided spanslide
// instance's connection info to listen for drag messages
func NewUDPFeed(spanslide *Spanslide, logger *zap.SugaredLogger) (*UDPFeed, error) {
	logger = logger.Named("udp")

	uf := &UDPFeed{
		spanslide:     spanslide,
		logger:        logger,
		stopChannel:   make(chan bool),
		dragConsumers: []chan DragEvent{},
	}

	logger.Debug("Created UDP feed instance")

	// respond to config changes
	uf.setupOnConfigReload()

	return uf, nil
}

// Start creates a UDP listener server
func (uf *UDPFeed) Start() error {
	uf.port = uf.spanslide.config.UDPPort

	s, err := net.ResolveUDPAddr("udp4", fmt.Sprintf(":%d", uf.port))
	if err != nil {
		uf.logger.Warnw("Failed to resolve UDP address", "error", err)
		return fmt.Errorf("resolve udp address: %w", err)
	}

	connection, err := net.ListenUDP("udp4", s)
	if err != nil {
		uf.logger.Warnw("Failed to start UDP listener", "error", err)
		return fmt.Errorf("start udp listener: %w", err)
	}

	uf.connection = connection

	namedLogger := uf.logger.Named(fmt.Sprintf(":%d", uf.port))

	namedLogger.Infow("Listening", "conn", uf.connection)

	// read packets or await a stop
	go func() {
		packetChannel := uf.readPacket(namedLogger)

		for {
			select {
			case <-uf.stopChannel:
				uf.close(namedLogger)
				return
			case packet := <-packetChannel:
				uf.handlePacket(namedLogger, packet)
			}
		}
	}()

	return nil
}

// Stop signals us to shut down our UDP listener, if one is active
func (uf *UDPFeed) Stop() {
	if uf.connection != nil {
		uf.logger.Debug("Shutting down UDP listener")
		uf.stopChannel <- true
	} else {
		uf.logger.Debug("Not currently listening, nothing to stop")
	}
}

// SubscribeToDragEvents returns an unbuffered channel that receives
// a DragEvent struct every time a valid drag message arrives
func (uf *UDPFeed) SubscribeToDragEvents() chan DragEvent {
	ch := make(chan DragEvent)
	uf.dragConsumers = append(uf.dragConsumers, ch)

	return ch
}

func (uf *UDPFeed) setupOnConfigReload() {
	configReloadedChannel := uf.spanslide.config.SubscribeToChanges()

	const stopDelay = 50 * time.Millisecond

	go func() {
		for {
			select {
			case <-configReloadedChannel:

				// if the port has changed, attempt to stop and start the listener
				if uf.spanslide.config.UDPPort != uf.port {
					uf.logger.Info("Detected change in UDP port, attempting to renew listener")
					uf.Stop()

					// let the listener close
					<-time.After(stopDelay)

					if err := uf.Start(); err != nil {
						uf.logger.Warnw("Failed to renew listener after port change", "error", err)
					} else {
						uf.logger.Debug("Renewed listener successfully")
					}
				}
			}
		}
	}()
}

func (uf *UDPFeed) close(logger *zap.SugaredLogger) {
	if err := uf.connection.Close(); err != nil {
		logger.Warnw("Failed to close UDP connection", "error", err)
	} else {
		logger.Debug("UDP connection closed")
	}

	uf.connection = nil
}

func (uf *UDPFeed) readPacket(logger *zap.SugaredLogger) chan string {
	packetChannel := make(chan string)

	go func() {
		for {
			packet := make([]byte, 4096)
			bytesRead, _, err := uf.connection.ReadFromUDP(packet)

			if err != nil {

				if uf.spanslide.Verbose() {
					logger.Warnw("Failed to read UDP packet", "error", err)
				}

				return
			}

			stringData := string(packet[:bytesRead])

			if uf.spanslide.Verbose() {
				logger.Debugw("Read new packet", "packet", stringData)
			}

			packetChannel <- stringData
		}
	}()

	return packetChannel
}

func (uf *UDPFeed) handlePacket(logger *zap.SugaredLogger, packet string) {

	// anyone can lob datagrams at our port, so this is validated just as
	// strictly as the serial line is
	if !expectedPacketPattern.MatchString(packet) {
		return
	}

	dragEvent, ok := parseDragMessage(packet, uf.spanslide.config.InvertDirection)
	if !ok {
		if uf.spanslide.Verbose() {
			logger.Debugw("Dropping drag message with zero width", "packet", packet)
		}

		return
	}

	if uf.spanslide.Verbose() {
		logger.Debugw("Widget dragged", "event", dragEvent)
	}

	// deliver the drag event towards all potential consumers
	for _, consumer := range uf.dragConsumers {
		consumer <- dragEvent
	}
}
