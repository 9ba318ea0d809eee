package spanslide

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// widgetMap is the routing registry between feeds and widgets: it owns the
// id->widget mapping built from config, hands incoming drag events to the
// right widget, and re-emits every widget's range updates on one aggregate
// channel for screens and logs.
type widgetMap struct {
	spanslide *Spanslide
	logger    *zap.SugaredLogger

	m    map[int]*Widget
	lock sync.Locker

	updateConsumers []chan RangeUpdateEvent
}

func newWidgetMap(spanslide *Spanslide, logger *zap.SugaredLogger) (*widgetMap, error) {
	logger = logger.Named("widgets")

	m := &widgetMap{
		spanslide:       spanslide,
		logger:          logger,
		m:               make(map[int]*Widget),
		lock:            &sync.Mutex{},
		updateConsumers: []chan RangeUpdateEvent{},
	}

	logger.Debug("Created widget map instance")

	return m, nil
}

func (m *widgetMap) initialize() error {
	m.buildWidgets()

	m.setupOnConfigReload()

	if m.spanslide.feed != nil {
		m.setupOnDragEvents()
	}

	return nil
}

// subscribeToRangeUpdates returns an unbuffered channel that receives
// every widget's RangeUpdateEvent structs as they're applied
func (m *widgetMap) subscribeToRangeUpdates() chan RangeUpdateEvent {
	ch := make(chan RangeUpdateEvent)
	m.updateConsumers = append(m.updateConsumers, ch)

	return ch
}

// buildWidgets replaces the registry contents with widgets made from the
// current config. Old widgets are closed first, so drag samples they still
// hold on their debounce timers die with them instead of firing into a
// registry that no longer knows them.
func (m *widgetMap) buildWidgets() {
	m.lock.Lock()

	for _, widget := range m.m {
		widget.Close()
	}

	m.m = make(map[int]*Widget)

	for _, widgetConfig := range m.spanslide.config.Widgets {
		widget := NewWidget(m.logger, widgetConfig)

		m.m[widget.ID] = widget
		m.watchWidget(widget)
	}

	numWidgets := len(m.m)
	m.lock.Unlock()

	m.logger.Infow("Built widgets from config", "numWidgets", numWidgets)
}

// watchWidget forwards one widget's updates to the aggregate consumers
func (m *widgetMap) watchWidget(widget *Widget) {
	updatesChannel := widget.SubscribeToRangeUpdates()

	go func() {
		for {
			select {
			case event := <-updatesChannel:
				m.handleRangeUpdate(event)
			}
		}
	}()
}

func (m *widgetMap) setupOnConfigReload() {
	configReloadedChannel := m.spanslide.config.SubscribeToChanges()

	go func() {
		for {
			select {
			case <-configReloadedChannel:
				m.logger.Debug("Detected config reload, rebuilding widgets")
				m.buildWidgets()
			}
		}
	}()
}

func (m *widgetMap) setupOnDragEvents() {
	dragEventsChannel := m.spanslide.feed.SubscribeToDragEvents()

	go func() {
		for {
			select {
			case event := <-dragEventsChannel:
				m.handleDragEvent(event)
			}
		}
	}()
}

func (m *widgetMap) handleDragEvent(event DragEvent) {
	widget, ok := m.get(event.WidgetID)
	if !ok {

		// not necessarily a bug, the controller may be configured for more
		// widgets than this machine is
		m.logger.Debugw("Got drag event for unknown widget", "widgetID", event.WidgetID)
		return
	}

	widget.HandleDrag(event.Sample)
}

func (m *widgetMap) handleRangeUpdate(event RangeUpdateEvent) {
	m.logger.Debugw("Applied range update",
		"widgetID", event.WidgetID,
		"lower", event.Lower,
		"upper", event.Upper)

	for _, consumer := range m.updateConsumers {
		consumer <- event
	}
}

// release closes all widgets so their pending debounce timers die quietly
func (m *widgetMap) release() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, widget := range m.m {
		widget.Close()
	}

	m.logger.Debug("Released widget map")

	return nil
}

func (m *widgetMap) get(key int) (*Widget, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	value, ok := m.m[key]
	return value, ok
}

// iterate visits widgets in id order, which is the order they appear in the
// config file and on the preview screen
func (m *widgetMap) iterate(f func(int, *Widget)) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for id := 0; id < len(m.m); id++ {
		if widget, ok := m.m[id]; ok {
			f(id, widget)
		}
	}
}

func (m *widgetMap) count() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.m)
}

func (m *widgetMap) String() string {
	m.lock.Lock()
	defer m.lock.Unlock()

	return fmt.Sprintf("<%d widgets>", len(m.m))
}
