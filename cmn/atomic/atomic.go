// Package atomic wraps sync/atomic with an Inc/Dec/Load/Store method shape
// (atomic.Int32, atomic.Int64).
/*
 * Copyright (c) 2024, FLUTE-Go Authors. All rights reserved.
 */
package atomic

import "sync/atomic"

type Int32 struct{ v atomic.Int32 }

func (i *Int32) Inc() int32      { return i.v.Add(1) }
func (i *Int32) Dec() int32      { return i.v.Add(-1) }
func (i *Int32) Load() int32     { return i.v.Load() }
func (i *Int32) Store(n int32)   { i.v.Store(n) }

type Int64 struct{ v atomic.Int64 }

func (i *Int64) Inc() int64    { return i.v.Add(1) }
func (i *Int64) Dec() int64    { return i.v.Add(-1) }
func (i *Int64) Load() int64   { return i.v.Load() }
func (i *Int64) Store(n int64) { i.v.Store(n) }

type Uint32 struct{ v atomic.Uint32 }

func (i *Uint32) Inc() uint32    { return i.v.Add(1) }
func (i *Uint32) Load() uint32   { return i.v.Load() }
func (i *Uint32) Store(n uint32) { i.v.Store(n) }

type Bool struct{ v atomic.Bool }

func (b *Bool) Load() bool     { return b.v.Load() }
func (b *Bool) Store(v bool)   { b.v.Store(v) }
func (b *Bool) CAS(old, new bool) bool { return b.v.CompareAndSwap(old, new) }
