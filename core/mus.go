package core

import (
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the types persisted by the embedded backend.
// Vectors use fixed-width float32 encoding; everything else is varint
// or length-prefixed.
var (
	IDMUS        = idMUS{}
	RecordMUS    = recordMUS{}
	IndexInfoMUS = indexInfoMUS{}

	vectorMUS   = ord.NewSliceSer[float32](raw.Float32)
	metadataMUS = ord.NewMapSer[string, string](ord.String, ord.String)
)

var (
	_ mus.Serializer[ID]        = IDMUS
	_ mus.Serializer[Record]    = RecordMUS
	_ mus.Serializer[IndexInfo] = IndexInfoMUS
)

type idMUS struct{}

func (s idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (s idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (s idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (s idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type recordMUS struct{}

func (s recordMUS) Marshal(r Record, bs []byte) (n int) {
	n = IDMUS.Marshal(r.Id, bs)
	n += vectorMUS.Marshal(r.Vector, bs[n:])
	n += metadataMUS.Marshal(r.Metadata, bs[n:])
	return n
}

func (s recordMUS) Unmarshal(bs []byte) (r Record, n int, err error) {
	var n1 int
	r.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	r.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Metadata, n1, err = metadataMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s recordMUS) Size(r Record) (size int) {
	size = IDMUS.Size(r.Id)
	size += vectorMUS.Size(r.Vector)
	size += metadataMUS.Size(r.Metadata)
	return size
}

func (s recordMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	n1, err = vectorMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = metadataMUS.Skip(bs[n:])
	n += n1
	return
}

type indexInfoMUS struct{}

func (s indexInfoMUS) Marshal(info IndexInfo, bs []byte) (n int) {
	n = ord.String.Marshal(info.Name, bs)
	n += varint.Int.Marshal(info.Dimension, bs[n:])
	n += ord.String.Marshal(info.Metric, bs[n:])
	n += varint.Uint64.Marshal(info.Count, bs[n:])
	return n
}

func (s indexInfoMUS) Unmarshal(bs []byte) (info IndexInfo, n int, err error) {
	var n1 int
	info.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	info.Dimension, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	info.Metric, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	info.Count, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	return
}

func (s indexInfoMUS) Size(info IndexInfo) (size int) {
	size = ord.String.Size(info.Name)
	size += varint.Int.Size(info.Dimension)
	size += ord.String.Size(info.Metric)
	size += varint.Uint64.Size(info.Count)
	return size
}

func (s indexInfoMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Uint64.Skip(bs[n:])
	n += n1
	return
}
