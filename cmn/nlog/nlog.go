// Package nlog is a thin leveled-logging wrapper exposing a call-site shape
// of Infoln/Infof/Warningln/Errorln.
/*
 * Copyright (c) 2024, FLUTE-Go Authors. All rights reserved.
 */
package nlog

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

func Infoln(v ...any)            { std.Println(append([]any{"I:"}, v...)...) }
func Infof(f string, v ...any)   { std.Printf("I: "+f, v...) }
func Warningln(v ...any)         { std.Println(append([]any{"W:"}, v...)...) }
func Warningf(f string, v ...any) { std.Printf("W: "+f, v...) }
func Errorln(v ...any)           { std.Println(append([]any{"E:"}, v...)...) }
func Errorf(f string, v ...any)  { std.Printf("E: "+f, v...) }

// SetOutput lets a host redirect the engine's log output; never called
// from within the core itself.
func SetOutput(w *log.Logger) { std = w }
