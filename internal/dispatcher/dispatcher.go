package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
	"github.com/folkertvanheusden/GHBot-BTC/internal/notifier"
	"github.com/folkertvanheusden/GHBot-BTC/internal/worker"
)

const waitMessage = "Predicting takes a while, please wait."

// Publisher sends text to a topic.
type Publisher = notifier.Publisher

// StatsSource answers the synchronous statistics commands.
type StatsSource interface {
	Stats(ctx context.Context, verbose bool) (*model.MarketStats, error)
	Linear(ctx context.Context) (*model.LinearForecast, error)
}

// SeasonalSource produces the seasonal forecast.
type SeasonalSource interface {
	Forecast(ctx context.Context) (*model.SeasonalForecast, error)
}

// Converter converts an asset amount into another currency.
type Converter interface {
	Convert(ctx context.Context, now time.Time, amount decimal.Decimal, code string) (decimal.Decimal, error)
}

// JobRunner runs slow work off the message handling path.
type JobRunner interface {
	Submit(name string, fn func(ctx context.Context)) (string, error)
}

// Config describes the bot's identity on the bus.
type Config struct {
	TopicPrefix   string   // e.g. "GHBot/"
	CommandPrefix string   // e.g. "!"
	Channels      []string // channels allowed to issue commands
	Group         string   // registration group
	Command       string   // command stem, e.g. "btc"
	Horizon       time.Duration
	BucketWidth   time.Duration
	QueryTimeout  time.Duration
	ReplyRetries  int           // retries for background job replies, 2 when zero, none when negative
	RetryBackoff  time.Duration // first wait between those retries
}

type command struct {
	name  string
	descr string
}

// Dispatcher routes bus messages to command handlers and publishes replies.
type Dispatcher struct {
	cfg       Config
	pub       Publisher
	stats     StatsSource
	seasonal  SeasonalSource
	converter Converter
	jobs      JobRunner
	replies   *notifier.Formatter
	channels  map[string]bool
	commands  []command

	Ctx context.Context
	Now func() time.Time

	mu            sync.RWMutex
	commandPrefix string
}

// New creates a Dispatcher.
func New(ctx context.Context, cfg Config, pub Publisher, stats StatsSource, seasonal SeasonalSource, conv Converter, jobs JobRunner, f *notifier.Formatter) *Dispatcher {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	switch {
	case cfg.ReplyRetries == 0:
		cfg.ReplyRetries = 2
	case cfg.ReplyRetries < 0:
		cfg.ReplyRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	channels := make(map[string]bool, len(cfg.Channels))
	for _, c := range cfg.Channels {
		channels[c] = true
	}
	a, name := cfg.Command, f.Asset
	return &Dispatcher{
		cfg:       cfg,
		pub:       pub,
		stats:     stats,
		seasonal:  seasonal,
		converter: conv,
		jobs:      jobs,
		replies:   f,
		channels:  channels,
		commands: []command{
			{a, fmt.Sprintf("Show latest %s price with lowest, highest, average and median of the last %s compared to the %s before. Add -v for a sparkline.",
				name, notifier.ShortDuration(cfg.Horizon), notifier.ShortDuration(cfg.Horizon))},
			{a + "price", fmt.Sprintf("Show the price in a currency of a certain %s amount. Parameters: amount currency", name)},
			{a + "plin", fmt.Sprintf("Linear predictions for %s price", name)},
			{a + "fb", fmt.Sprintf("Predict %s price using a seasonal regression", name)},
		},
		Ctx:           ctx,
		Now:           time.Now,
		commandPrefix: cfg.CommandPrefix,
	}
}

// Topics returns the subscription filters the dispatcher needs.
func (d *Dispatcher) Topics() []string {
	p := d.cfg.TopicPrefix
	return []string{p + "from/irc/#", p + "from/bot/command", p + "from/bot/parameter/prefix"}
}

// CommandPrefix returns the prefix commands must start with.
func (d *Dispatcher) CommandPrefix() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.commandPrefix
}

// Announce publishes one descriptor per command to the register topic.
func (d *Dispatcher) Announce() error {
	topic := d.cfg.TopicPrefix + "to/bot/register"
	var errs []error
	for _, c := range d.commands {
		if err := d.pub.Publish(topic, notifier.FormatDescriptor(d.cfg.Group, c.name, c.descr)); err != nil {
			errs = append(errs, fmt.Errorf("announce %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// HandleMessage processes one message from the bus.
func (d *Dispatcher) HandleMessage(topic, payload string) {
	rel, ok := strings.CutPrefix(topic, d.cfg.TopicPrefix)
	if !ok {
		return
	}

	switch rel {
	case "from/bot/command":
		if payload == "register" {
			if err := d.Announce(); err != nil {
				log.Errorf("re-announce: %v", err)
			}
		}
		return
	case "from/bot/parameter/prefix":
		if p := strings.TrimSpace(payload); p != "" {
			d.mu.Lock()
			d.commandPrefix = p
			d.mu.Unlock()
			log.Infof("command prefix set to %q", p)
		}
		return
	}

	parts := strings.Split(rel, "/")
	if len(parts) < 3 || parts[0] != "from" || parts[1] != "irc" {
		return
	}
	channel := parts[2]
	if !d.allowed(channel) {
		log.Debugf("ignoring message from channel %s", channel)
		return
	}
	reply := fmt.Sprintf("%sto/irc/%s/notice", d.cfg.TopicPrefix, channel)

	tokens := strings.Fields(payload)
	if len(tokens) == 0 {
		return
	}
	name, ok := strings.CutPrefix(tokens[0], d.CommandPrefix())
	if !ok {
		return
	}
	args := tokens[1:]

	a := d.cfg.Command
	switch name {
	case a:
		d.handleStats(reply, hasFlag(args, "-v"))
	case a + "plin":
		d.handleLinear(reply)
	case a + "fb":
		d.handleSeasonal(reply, hasFlag(args, "-v"))
	case a + "price":
		d.handleConvert(reply, args)
	}
}

func (d *Dispatcher) allowed(channel string) bool {
	return d.channels[channel] || strings.HasPrefix(channel, `\`)
}

func (d *Dispatcher) handleStats(reply string, verbose bool) {
	ctx, cancel := context.WithTimeout(d.Ctx, d.cfg.QueryTimeout)
	defer cancel()

	s, err := d.stats.Stats(ctx, verbose)
	if err != nil {
		d.send(reply, d.replies.FormatError(d.replies.Asset+" statistics", err))
		return
	}
	d.send(reply, d.replies.FormatStats(s))
}

func (d *Dispatcher) handleLinear(reply string) {
	ctx, cancel := context.WithTimeout(d.Ctx, d.cfg.QueryTimeout)
	defer cancel()

	lf, err := d.stats.Linear(ctx)
	if err != nil {
		d.send(reply, d.replies.FormatError("Linear "+d.replies.Asset+" prediction", err))
		return
	}
	d.send(reply, d.replies.FormatLinear(lf, d.cfg.Horizon))
}

func (d *Dispatcher) handleSeasonal(reply string, verbose bool) {
	d.send(reply, waitMessage)

	id, err := d.jobs.Submit(d.cfg.Command+"fb", func(ctx context.Context) {
		sf, err := d.seasonal.Forecast(ctx)
		if err != nil {
			d.sendWithRetry(ctx, reply, d.replies.FormatError("Seasonal "+d.replies.Asset+" prediction", err))
			return
		}
		d.sendWithRetry(ctx, reply, d.replies.FormatSeasonal(sf, d.cfg.BucketWidth, verbose))
	})
	switch {
	case errors.Is(err, worker.ErrQueueFull):
		d.send(reply, "Too many predictions pending, please try again later.")
	case err != nil:
		log.Errorf("submit seasonal forecast: %v", err)
	default:
		log.Debugf("seasonal forecast job %s queued", id)
	}
}

func (d *Dispatcher) handleConvert(reply string, args []string) {
	if len(args) != 2 {
		d.send(reply, fmt.Sprintf("Required parameters: %s-amount currency", d.cfg.Command))
		return
	}
	amount, err := decimal.NewFromString(args[0])
	if err != nil || amount.IsNegative() {
		d.send(reply, fmt.Sprintf("%q is not a valid %s amount", args[0], d.replies.Asset))
		return
	}

	ctx, cancel := context.WithTimeout(d.Ctx, d.cfg.QueryTimeout)
	defer cancel()

	code := strings.ToUpper(args[1])
	value, err := d.converter.Convert(ctx, d.Now(), amount, code)
	if err != nil {
		d.send(reply, d.replies.FormatError("Currency conversion", err))
		return
	}
	d.send(reply, d.replies.FormatConversion(amount, value, code))
}

func (d *Dispatcher) send(topic, text string) {
	if err := d.pub.Publish(topic, text); err != nil {
		log.Errorf("publish reply to %s: %v", topic, err)
	}
}

// sendWithRetry publishes a reply from a background job, retrying on failure.
func (d *Dispatcher) sendWithRetry(ctx context.Context, topic, text string) {
	if err := notifier.PublishWithRetry(ctx, d.pub, topic, text, d.cfg.ReplyRetries, d.cfg.RetryBackoff); err != nil {
		log.Errorf("publish reply to %s: %v", topic, err)
	}
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
