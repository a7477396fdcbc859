package quickfixconn

import (
	"bytes"
	"fmt"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// NewLogFactory returns a quickfix.LogFactory writing engine events and raw
// traffic to logger. Traffic is logged at debug with SOH shown as '|'.
func NewLogFactory(logger *zap.Logger) quickfix.LogFactory {
	return logFactory{logger: logger.Named("quickfix")}
}

type logFactory struct {
	logger *zap.Logger
}

func (f logFactory) Create() (quickfix.Log, error) {
	return engineLog{logger: f.logger}, nil
}

func (f logFactory) CreateSessionLog(id quickfix.SessionID) (quickfix.Log, error) {
	return engineLog{logger: f.logger.With(zap.Stringer("session", SessionID(id)))}, nil
}

type engineLog struct {
	logger *zap.Logger
}

func (l engineLog) OnIncoming(b []byte) {
	l.logger.Debug("incoming", zap.ByteString("message", readable(b)))
}

func (l engineLog) OnOutgoing(b []byte) {
	l.logger.Debug("outgoing", zap.ByteString("message", readable(b)))
}

func (l engineLog) OnEvent(s string) {
	l.logger.Info(s)
}

func (l engineLog) OnEventf(format string, a ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, a...))
}

func readable(b []byte) []byte {
	return bytes.ReplaceAll(b, []byte{'\x01'}, []byte{'|'})
}
