package logger

import (
	"log"
	"os"
)

const defaultFlags = log.Ldate | log.Ltime | log.Lshortfile

// The loggers are usable from the moment the package is imported; Init only
// resets them, for callers that swapped outputs.
var (
	InfoLogger  = log.New(os.Stdout, "INFO: ", defaultFlags)
	WarnLogger  = log.New(os.Stdout, "WARN: ", defaultFlags)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", defaultFlags)
	DebugLogger = log.New(os.Stdout, "DEBUG: ", defaultFlags)
)

func Init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", defaultFlags)
	WarnLogger = log.New(os.Stdout, "WARN: ", defaultFlags)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", defaultFlags)
	DebugLogger = log.New(os.Stdout, "DEBUG: ", defaultFlags)
}

func Info(msg string) {
	InfoLogger.Println(msg)
}

func Infof(format string, v ...interface{}) {
	InfoLogger.Printf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	WarnLogger.Printf(format, v...)
}

func Error(msg string) {
	ErrorLogger.Println(msg)
}

func Errorf(format string, v ...interface{}) {
	ErrorLogger.Printf(format, v...)
}

func Debugf(format string, v ...interface{}) {
	DebugLogger.Printf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	ErrorLogger.Fatalf(format, v...)
}
