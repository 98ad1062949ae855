/*
 * Copyright 2018-2023, CS Systemes d'Information, http://csgroup.eu
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package commonlog

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevelFnMap is a map between loglevel and log functions from logrus
var LogLevelFnMap = map[logrus.Level]func(args ...interface{}){
	logrus.TraceLevel: logrus.Trace,
	logrus.DebugLevel: logrus.Debug,
	logrus.InfoLevel:  logrus.Info,
	logrus.WarnLevel:  logrus.Warn,
	logrus.ErrorLevel: logrus.Error,
}

// MyFormatter ...
type MyFormatter struct {
	logrus.TextFormatter
	pid string
}

// GetDefaultFormatter returns the default formatter used by the plugin and its runner
func GetDefaultFormatter() *MyFormatter {
	return &MyFormatter{
		TextFormatter: logrus.TextFormatter{
			ForceColors:            true,
			TimestampFormat:        "2006-01-02 15:04:05.000",
			FullTimestamp:          true,
			DisableLevelTruncation: true,
		},
	}
}

// Format inserts level and pid after the timestamp
func (f *MyFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if f.TextFormatter.DisableLevelTruncation && f.TextFormatter.ForceColors {
		if f.pid == "" {
			f.pid = strconv.Itoa(os.Getpid())
			if len(f.pid) < 5 {
				f.pid = strings.Repeat(" ", 5-len(f.pid)) + f.pid
			}
		}
		bc, err := f.TextFormatter.Format(entry)
		ticket := string(bc)
		padding := 8 - len(entry.Level.String())
		if padding < 0 {
			padding = 0
		}
		replaced := strings.Replace(ticket, "[20", strings.Repeat(" ", padding)+"[20", 1)
		replaced = strings.Replace(replaced, "] ", "]["+entry.Level.String()+"]["+f.pid+"] ", 1)
		return []byte(replaced), err
	}

	return f.TextFormatter.Format(entry)
}

// SetLevel parses 'level' and applies it to the standard logger; unknown levels fall back to Info
func SetLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	return lvl
}
