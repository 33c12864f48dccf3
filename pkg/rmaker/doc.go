// Package rmaker implements the device framework over ESP RainMaker MQTT
// node topics.
//
// Writes and commands are published as parameter updates on
// node/<id>/params/remote. Nodes report their parameters on
// node/<id>/params/local; a ParamMap translates between RainMaker
// parameters and Matter attribute paths so the control layer can drive
// RainMaker nodes exactly like Matter ones.
package rmaker
