package model

// Params are the service-side parameters of one dispatch: which allele to
// score against and with which method. Services that do not use them, like
// the annotation lookup, ignore them.
type Params struct {
	Allele string
	Method string
}
