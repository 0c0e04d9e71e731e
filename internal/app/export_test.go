package app

var NewLoggerTo = newLogger
