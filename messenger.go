package lodgechat

import (
	"log/slog"

	"github.com/jcooky/go-din"

	"github.com/habiliai/lodgechat/attachment"
	"github.com/habiliai/lodgechat/config"
	"github.com/habiliai/lodgechat/delivery"
	"github.com/habiliai/lodgechat/directory"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/message"
	"github.com/habiliai/lodgechat/readmark"
	"github.com/habiliai/lodgechat/thread"
)

const (
	defaultStreamBuffer = 64
)

type (
	// Messenger bundles the messaging modules. Per-user state lives in a Session.
	Messenger struct {
		logger       *slog.Logger
		threads      thread.Manager
		messages     message.Log
		tracker      readmark.Tracker
		dispatcher   *delivery.Dispatcher
		attachments  attachment.Resolver
		identity     directory.Identity
		streamBuffer int
	}
	Option func(*Messenger)
)

func NewMessenger(optionFuncs ...Option) (*Messenger, error) {
	m := &Messenger{
		streamBuffer: defaultStreamBuffer,
	}
	for _, f := range optionFuncs {
		f(m)
	}

	if m.logger == nil {
		logConfig := config.NewLogConfig()
		m.logger = mylog.NewLogger(logConfig.LogLevel, logConfig.LogHandler)
	}

	switch {
	case m.threads == nil:
		return nil, errors.New("thread manager is required")
	case m.messages == nil:
		return nil, errors.New("message log is required")
	case m.tracker == nil:
		return nil, errors.New("read tracker is required")
	case m.dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case m.attachments == nil:
		return nil, errors.New("attachment resolver is required")
	case m.identity == nil:
		return nil, errors.New("identity is required")
	}

	return m, nil
}

// FromContainer builds a Messenger out of the providers registered in c.
func FromContainer(c *din.Container) (*Messenger, error) {
	logger, err := din.Get[*slog.Logger](c, mylog.Key)
	if err != nil {
		return nil, err
	}
	threads, err := din.GetT[thread.Manager](c)
	if err != nil {
		return nil, err
	}
	messages, err := din.GetT[message.Log](c)
	if err != nil {
		return nil, err
	}
	tracker, err := din.GetT[readmark.Tracker](c)
	if err != nil {
		return nil, err
	}
	dispatcher, err := din.GetT[*delivery.Dispatcher](c)
	if err != nil {
		return nil, err
	}
	attachments, err := din.GetT[attachment.Resolver](c)
	if err != nil {
		return nil, err
	}
	identity, err := din.GetT[directory.Identity](c)
	if err != nil {
		return nil, err
	}
	realtimeConfig, err := din.GetT[*config.RealtimeConfig](c)
	if err != nil {
		return nil, err
	}

	return NewMessenger(
		WithLogger(logger),
		WithThreadManager(threads),
		WithMessageLog(messages),
		WithTracker(tracker),
		WithDispatcher(dispatcher),
		WithAttachments(attachments),
		WithIdentity(identity),
		WithStreamBuffer(realtimeConfig.SubscriberBuffer),
	)
}

// NewSession starts the per-user context of userId. The caller authenticated userId.
func (m *Messenger) NewSession(userId string) (*Session, error) {
	if userId == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "user id is required")
	}

	return &Session{
		messenger: m,
		userId:    userId,
		directory: directory.NewDirectory(m.identity),
		views:     make(map[uint]*View),
	}, nil
}

func (m *Messenger) Threads() thread.Manager {
	return m.threads
}

func (m *Messenger) Messages() message.Log {
	return m.messages
}

func (m *Messenger) Tracker() readmark.Tracker {
	return m.tracker
}

func (m *Messenger) Dispatcher() *delivery.Dispatcher {
	return m.dispatcher
}

func (m *Messenger) Attachments() attachment.Resolver {
	return m.attachments
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Messenger) {
		m.logger = logger
	}
}

func WithThreadManager(threads thread.Manager) Option {
	return func(m *Messenger) {
		m.threads = threads
	}
}

func WithMessageLog(messages message.Log) Option {
	return func(m *Messenger) {
		m.messages = messages
	}
}

func WithTracker(tracker readmark.Tracker) Option {
	return func(m *Messenger) {
		m.tracker = tracker
	}
}

func WithDispatcher(dispatcher *delivery.Dispatcher) Option {
	return func(m *Messenger) {
		m.dispatcher = dispatcher
	}
}

func WithAttachments(attachments attachment.Resolver) Option {
	return func(m *Messenger) {
		m.attachments = attachments
	}
}

func WithIdentity(identity directory.Identity) Option {
	return func(m *Messenger) {
		m.identity = identity
	}
}

func WithStreamBuffer(size int) Option {
	return func(m *Messenger) {
		if size > 0 {
			m.streamBuffer = size
		}
	}
}

func init() {
	din.RegisterT(FromContainer)
}
