package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Params are the parameters of the logger.
type Params struct {
	Level string
	// File enables the rotated file output. Logs are written on stderr when empty.
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// New returns a new well configured logger.
func New(params Params) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if params.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(params.Level); err != nil {
			return nil, errors.Wrap(err, "could not parse log level")
		}
	}

	formatter := new(logFormatter)

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(formatter)
	log.SetOutput(os.Stderr)

	if params.File != "" {
		log.SetOutput(io.Discard) // stderr to /dev/null
		log.Hooks.Add(&fileHook{
			rotate: &lumberjack.Logger{
				Filename:   params.File,
				MaxSize:    params.MaxSize,
				MaxBackups: params.MaxBackups,
				MaxAge:     params.MaxAge,
			},
			formatter: formatter,
		})
	}

	return log, nil
}

////////////////////
//                //
// File hook      //
//                //
////////////////////

type fileHook struct {
	sync.Mutex
	rotate    *lumberjack.Logger
	formatter logrus.Formatter
}

// Fire writes the entry to the rotated file.
func (hook *fileHook) Fire(entry *logrus.Entry) error {
	hook.Lock()
	defer hook.Unlock()

	// use our formatter instead of entry.String()
	msg, err := hook.formatter.Format(entry)
	if err != nil {
		log.Println("failed to generate string for entry:", err)
		return err
	}

	_, err = hook.rotate.Write(msg)
	return err
}

// Levels returns configured log levels.
func (hook *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

////////////////////
//                //
// Log formatter  //
//                //
////////////////////

type logFormatter struct{}

// Format implements Logrus formatter.
// Fields are sorted so lines are stable.
func (f *logFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	fields := ""
	if len(entry.Data) > 0 {
		fs := []string{}
		for k, v := range entry.Data {
			fs = append(fs, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(fs)
		fields = fmt.Sprintf(" (%s)", strings.Join(fs, ", "))
	}

	data := fmt.Sprintf("[%s] %+5s: %s%s\n",
		entry.Time.Format(time.RFC3339),
		strings.ToUpper(entry.Level.String()),
		entry.Message,
		fields,
	)
	return []byte(data), nil
}
