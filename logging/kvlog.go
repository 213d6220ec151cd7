/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logging

import (
	"fmt"

	"github.com/crewjam/rfc5424"
)

// KV builds a structured-data parameter for the logger's structured log
// methods, e.g. logger.Warn("fault reset attempts exhausted", logging.KV("slave", pos)).
func KV(key string, value interface{}) rfc5424.SDParam {
	return rfc5424.SDParam{Name: key, Value: toString(value)}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		if x == nil {
			return ``
		}
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// KVLogger wraps a *Logger with a persistent set of structured-data
// parameters (e.g. the slave position) that are appended to every call,
// so per-slave log sites do not need to repeat the slave identity.
type KVLogger struct {
	*Logger
	sds []rfc5424.SDParam
}

// NewLoggerWithKV returns a KVLogger that always includes the given
// key/value pairs in addition to whatever is passed at the call site.
func NewLoggerWithKV(l *Logger, kvs ...rfc5424.SDParam) *KVLogger {
	return &KVLogger{Logger: l, sds: kvs}
}

func (kvl *KVLogger) AddKV(key string, value interface{}) {
	kvl.sds = append(kvl.sds, KV(key, value))
}

func (kvl *KVLogger) Debug(msg string, sds ...rfc5424.SDParam) error {
	return kvl.Logger.Debug(msg, append(kvl.sds, sds...)...)
}

func (kvl *KVLogger) Info(msg string, sds ...rfc5424.SDParam) error {
	return kvl.Logger.Info(msg, append(kvl.sds, sds...)...)
}

func (kvl *KVLogger) Warn(msg string, sds ...rfc5424.SDParam) error {
	return kvl.Logger.Warn(msg, append(kvl.sds, sds...)...)
}

func (kvl *KVLogger) Error(msg string, sds ...rfc5424.SDParam) error {
	return kvl.Logger.Error(msg, append(kvl.sds, sds...)...)
}

func (kvl *KVLogger) Critical(msg string, sds ...rfc5424.SDParam) error {
	return kvl.Logger.Critical(msg, append(kvl.sds, sds...)...)
}
