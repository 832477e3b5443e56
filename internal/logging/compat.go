package logging

import (
	"fmt"
	"os"
)

// Fatal logs at Error level and exits. Only the command-line front end should
// call these.
func (log *Logger) Fatal(v ...interface{}) {
	log.Log(Error, 1, "%s", fmt.Sprint(v...))
	os.Exit(1)
}

func (log *Logger) Fatalf(format string, v ...interface{}) {
	log.Log(Error, 1, format, v...)
	os.Exit(1)
}
