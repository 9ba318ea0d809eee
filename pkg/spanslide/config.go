package spanslide

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/ronlev/spanslide/pkg/spanslide/util"
)

// CanonicalConfig provides application-wide access to configuration fields,
// as well as loading/file watching logic for spanslide's configuration file
type CanonicalConfig struct {
	Widgets []WidgetConfig

	ConnectionInfo struct {
		COMPort  string
		BaudRate int
	}

	Feed            string
	UDPPort         int
	InvertDirection bool

	logger             *zap.SugaredLogger
	notifier           Notifier
	stopWatcherChannel chan bool

	reloadConsumers []chan bool

	userConfig     *viper.Viper
	internalConfig *viper.Viper
}

const (
	userConfigFilepath     = "config.yaml"
	internalConfigFilepath = "preferences.yaml"

	userConfigName     = "config"
	internalConfigName = "preferences"

	userConfigPath = "."

	configType = "yaml"

	configKeyWidgets         = "widgets"
	configKeyFeed            = "feed"
	configKeyCOMPort         = "com_port"
	configKeyBaudRate        = "baud_rate"
	configKeyUDPPort         = "udp_port"
	configKeyInvertDirection = "invert_direction"

	// accepted values for the feed key
	feedSerial = "serial"
	feedUDP    = "udp"
	feedOff    = "off"

	defaultCOMPort  = "COM4"
	defaultBaudRate = 9600
	defaultUDPPort  = 16990
)

// has to be defined as a non-constant because we're using path.Join
var internalConfigPath = path.Join(".", logDirectory)

var knownFeeds = []string{feedSerial, feedUDP, feedOff}

// used when the widgets list is missing or empty, so the app always has
// something to drive
var defaultWidgets = []WidgetConfig{
	{ID: 0, Name: "span", Step: defaultWidgetStep, Debounce: defaultWidgetDebounce, Lower: 0.0, Upper: 1.0},
}

// NewConfig creates a config instance for the spanslide object and sets up viper instances for its config files
func NewConfig(logger *zap.SugaredLogger, notifier Notifier) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	cc := &CanonicalConfig{
		logger:             logger,
		notifier:           notifier,
		reloadConsumers:    []chan bool{},
		stopWatcherChannel: make(chan bool),
	}

	// distinguish between the user-provided config (config.yaml) and the internal config (logs/preferences.yaml)
	userConfig := viper.New()
	userConfig.SetConfigName(userConfigName)
	userConfig.SetConfigType(configType)
	userConfig.AddConfigPath(userConfigPath)

	userConfig.SetDefault(configKeyWidgets, []map[string]interface{}{})
	userConfig.SetDefault(configKeyFeed, feedUDP)
	userConfig.SetDefault(configKeyCOMPort, defaultCOMPort)
	userConfig.SetDefault(configKeyBaudRate, defaultBaudRate)
	userConfig.SetDefault(configKeyUDPPort, defaultUDPPort)
	userConfig.SetDefault(configKeyInvertDirection, false)

	internalConfig := viper.New()
	internalConfig.SetConfigName(internalConfigName)
	internalConfig.SetConfigType(configType)
	internalConfig.AddConfigPath(internalConfigPath)

	cc.userConfig = userConfig
	cc.internalConfig = internalConfig

	logger.Debug("Created config instance")

	return cc, nil
}

// Load reads spanslide's config files from disk and tries to parse them
func (cc *CanonicalConfig) Load() error {
	cc.logger.Debugw("Loading config", "path", userConfigFilepath)

	// make sure it exists
	if !util.FileExists(userConfigFilepath) {
		cc.logger.Warnw("Config file not found", "path", userConfigFilepath)
		cc.notifier.Notify("Can't find configuration!",
			fmt.Sprintf("%s must be in the same directory as spanslide. Please re-launch", userConfigFilepath))

		return fmt.Errorf("config file doesn't exist: %s", userConfigFilepath)
	}

	// load the user config
	if err := cc.userConfig.ReadInConfig(); err != nil {
		cc.logger.Warnw("Viper failed to read user config", "error", err)

		// if the error is yaml-format-related, show a sensible error. otherwise, show 'em to the logs
		if strings.Contains(err.Error(), "yaml:") {
			cc.notifier.Notify("Invalid configuration!",
				fmt.Sprintf("Please make sure %s is in a valid YAML format.", userConfigFilepath))
		} else {
			cc.notifier.Notify("Error loading configuration!", "Please check spanslide's logs for more details.")
		}

		return fmt.Errorf("read user config: %w", err)
	}

	// load the internal config - this doesn't have to exist, so it can error
	if err := cc.internalConfig.ReadInConfig(); err != nil {
		cc.logger.Debugw("Viper failed to read internal config", "error", err, "reminder", "this is fine")
	}

	// canonize the configuration with viper's helpers
	if err := cc.populateFromVipers(); err != nil {
		cc.logger.Warnw("Failed to populate config fields", "error", err)
		return fmt.Errorf("populate config fields: %w", err)
	}

	cc.logger.Info("Loaded config successfully")
	cc.logger.Infow("Config values",
		"widgets", cc.Widgets,
		"feed", cc.Feed,
		"connectionInfo", cc.ConnectionInfo,
		"udpPort", cc.UDPPort,
		"invertDirection", cc.InvertDirection)

	return nil
}

// SubscribeToChanges allows external components to receive updates when the config is reloaded
func (cc *CanonicalConfig) SubscribeToChanges() chan bool {
	c := make(chan bool)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges starts watching for configuration file changes
// and attempts reloading the config when they happen
func (cc *CanonicalConfig) WatchConfigFileChanges() {
	cc.logger.Debugw("Starting to watch user config file for changes", "path", userConfigFilepath)

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	// establish watch using viper as opposed to doing it ourselves, though our internal cooldown is still required
	cc.userConfig.WatchConfig()
	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {

		// when we get a write event...
		if event.Op&fsnotify.Write == fsnotify.Write {

			now := time.Now()

			// ... check if it's not a duplicate (many editors will write to a file twice)
			if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).Before(now) {

				// and attempt reload if appropriate
				cc.logger.Debugw("Config file modified, attempting reload", "event", event)

				// wait a bit to let the editor actually flush the new file contents to disk
				<-time.After(delayBetweenEventAndReload)

				if err := cc.Load(); err != nil {
					cc.logger.Warnw("Failed to reload config file", "error", err)
				} else {
					cc.logger.Info("Reloaded config successfully")
					cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")

					cc.onConfigReloaded()
				}

				// don't forget to update the time
				lastAttemptedReload = now
			}
		}
	})

	// wait till they stop us
	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
	cc.userConfig.OnConfigChange(nil)
}

// StopWatchingConfigFile signals our filesystem watcher to stop
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	cc.stopWatcherChannel <- true
}

func (cc *CanonicalConfig) populateFromVipers() error {

	// the widgets list needs hand-parsing, viper only gets us halfway there
	cc.Widgets = cc.widgetsFromConfig()

	// get the rest of the config fields - viper saves us a lot of effort here
	cc.Feed = cc.userConfig.GetString(configKeyFeed)
	if !funk.ContainsString(knownFeeds, cc.Feed) {
		cc.logger.Warnw("Invalid feed specified, using default value",
			"key", configKeyFeed,
			"invalidValue", cc.Feed,
			"defaultValue", feedUDP)

		cc.Feed = feedUDP
	}

	cc.ConnectionInfo.COMPort = cc.userConfig.GetString(configKeyCOMPort)

	cc.ConnectionInfo.BaudRate = cc.userConfig.GetInt(configKeyBaudRate)
	if cc.ConnectionInfo.BaudRate <= 0 {
		cc.logger.Warnw("Invalid baud rate specified, using default value",
			"key", configKeyBaudRate,
			"invalidValue", cc.ConnectionInfo.BaudRate,
			"defaultValue", defaultBaudRate)

		cc.ConnectionInfo.BaudRate = defaultBaudRate
	}

	cc.UDPPort = cc.userConfig.GetInt(configKeyUDPPort)
	if cc.UDPPort <= 0 || cc.UDPPort > 65535 {
		cc.logger.Warnw("Invalid UDP port specified, using default value",
			"key", configKeyUDPPort,
			"invalidValue", cc.UDPPort,
			"defaultValue", defaultUDPPort)

		cc.UDPPort = defaultUDPPort
	}

	cc.InvertDirection = cc.userConfig.GetBool(configKeyInvertDirection)

	// the internal config may override connection fields, so a deployment
	// can repoint a machine without touching the user's own file
	for _, key := range []string{configKeyCOMPort, configKeyBaudRate, configKeyUDPPort} {
		if !cc.internalConfig.IsSet(key) {
			continue
		}

		switch key {
		case configKeyCOMPort:
			cc.ConnectionInfo.COMPort = cc.internalConfig.GetString(key)
		case configKeyBaudRate:
			cc.ConnectionInfo.BaudRate = cc.internalConfig.GetInt(key)
		case configKeyUDPPort:
			cc.UDPPort = cc.internalConfig.GetInt(key)
		}

		cc.logger.Debugw("Internal config overrides user value", "key", key)
	}

	cc.logger.Debug("Populated config fields from vipers")

	return nil
}

// widgetsFromConfig canonizes the user's widgets list. Entries it can't make
// sense of are skipped with a warning rather than failing the whole load;
// out-of-range numeric fields are individually corrected. Widget ids follow
// the order of valid entries, which is also the id the wire protocol uses.
func (cc *CanonicalConfig) widgetsFromConfig() []WidgetConfig {
	raw := cc.userConfig.Get(configKeyWidgets)

	rawList, ok := raw.([]interface{})
	if !ok || len(rawList) == 0 {
		if raw != nil && !ok {
			cc.logger.Warnw("Malformed widgets list in config, using default widget",
				"key", configKeyWidgets,
				"invalidValue", raw)
		}

		return append([]WidgetConfig{}, defaultWidgets...)
	}

	widgets := []WidgetConfig{}

	for entryIdx, rawEntry := range rawList {

		// yaml gives us either string-keyed or interface-keyed maps depending
		// on how viper got to the value, normalize to the former
		fields := map[string]interface{}{}

		switch entry := rawEntry.(type) {
		case map[string]interface{}:
			fields = entry
		case map[interface{}]interface{}:
			for key, value := range entry {
				if keyString, keyOk := key.(string); keyOk {
					fields[strings.ToLower(keyString)] = value
				}
			}
		default:
			cc.logger.Warnw("Skipping malformed widget entry",
				"index", entryIdx,
				"invalidValue", rawEntry)

			continue
		}

		widget := WidgetConfig{
			ID:       len(widgets),
			Step:     defaultWidgetStep,
			Debounce: defaultWidgetDebounce,
			Lower:    0.0,
			Upper:    1.0,
		}

		if name, nameOk := fields["name"].(string); nameOk {
			widget.Name = name
		}

		if widget.Name == "" {
			widget.Name = fmt.Sprintf("widget %d", widget.ID)
		}

		if rawStep, present := fields["step"]; present {
			if step, stepOk := configFloat(rawStep); stepOk && step > 0 && step <= 1.0 {
				widget.Step = step
			} else {
				cc.logger.Warnw("Invalid step for widget, using default value",
					"widget", widget.Name,
					"invalidValue", rawStep,
					"defaultValue", defaultWidgetStep)
			}
		}

		if rawDebounce, present := fields["debounce"]; present {
			if debounce, debounceOk := configDuration(rawDebounce); debounceOk && debounce >= 0 {
				widget.Debounce = debounce
			} else {
				cc.logger.Warnw("Invalid debounce for widget, using default value",
					"widget", widget.Name,
					"invalidValue", rawDebounce,
					"defaultValue", defaultWidgetDebounce)
			}
		}

		if rawLower, present := fields["lower"]; present {
			if lower, lowerOk := configFloat(rawLower); lowerOk {
				widget.Lower = lower
			}
		}

		if rawUpper, present := fields["upper"]; present {
			if upper, upperOk := configFloat(rawUpper); upperOk {
				widget.Upper = upper
			}
		}

		// thumbs must start on the track, and in order
		if widget.Lower < 0.0 || widget.Lower > 1.0 || widget.Upper < 0.0 || widget.Upper > 1.0 {
			cc.logger.Warnw("Widget range out of bounds, clamping",
				"widget", widget.Name,
				"lower", widget.Lower,
				"upper", widget.Upper)

			widget.Lower = clampUnit(widget.Lower)
			widget.Upper = clampUnit(widget.Upper)
		}

		if widget.Lower > widget.Upper {
			cc.logger.Warnw("Widget range is reversed, swapping bounds",
				"widget", widget.Name,
				"lower", widget.Lower,
				"upper", widget.Upper)

			widget.Lower, widget.Upper = widget.Upper, widget.Lower
		}

		widgets = append(widgets, widget)
	}

	if len(widgets) == 0 {
		cc.logger.Warnw("No valid widget entries in config, using default widget", "key", configKeyWidgets)
		return append([]WidgetConfig{}, defaultWidgets...)
	}

	// duplicate names won't break routing (ids do that), but they make the
	// preview and the logs confusing enough to warrant a warning
	names := []string{}
	for _, widget := range widgets {
		names = append(names, widget.Name)
	}

	if len(funk.UniqString(names)) != len(names) {
		cc.logger.Warnw("Duplicate widget names in config", "names", names)
	}

	return widgets
}

func (cc *CanonicalConfig) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		consumer <- true
	}
}

// configFloat converts the numeric types yaml parsing may hand us
func configFloat(value interface{}) (float64, bool) {
	switch number := value.(type) {
	case int:
		return float64(number), true
	case int64:
		return float64(number), true
	case float32:
		return float64(number), true
	case float64:
		return number, true
	}

	return 0, false
}

// configDuration accepts either a duration string ("150ms") or a bare
// number of milliseconds
func configDuration(value interface{}) (time.Duration, bool) {
	switch duration := value.(type) {
	case string:
		parsed, err := time.ParseDuration(duration)
		if err != nil {
			return 0, false
		}

		return parsed, true
	case int:
		return time.Duration(duration) * time.Millisecond, true
	case int64:
		return time.Duration(duration) * time.Millisecond, true
	case float64:
		return time.Duration(duration * float64(time.Millisecond)), true
	}

	return 0, false
}

func clampUnit(value float64) float64 {
	if value < 0.0 {
		return 0.0
	}
	if value > 1.0 {
		return 1.0
	}

	return value
}
