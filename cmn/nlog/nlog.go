// Package nlog is the data path's leveled logger: a thin wrapper over the
// standard log package that matches the call-site shape used throughout
// (Infoln, Infof, Errorln, Warningf) without pulling in a structured
// logging dependency the rest of the stack never needed.
package nlog

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

func Infoln(v ...any)             { std.Println(append([]any{"I "}, v...)...) }
func Infof(f string, v ...any)    { std.Printf("I "+f, v...) }
func Warningln(v ...any)          { std.Println(append([]any{"W "}, v...)...) }
func Warningf(f string, v ...any) { std.Printf("W "+f, v...) }
func Errorln(v ...any)            { std.Println(append([]any{"E "}, v...)...) }
func Errorf(f string, v ...any)   { std.Printf("E "+f, v...) }
func Fatalln(v ...any)            { std.Fatalln(append([]any{"F "}, v...)...) }
