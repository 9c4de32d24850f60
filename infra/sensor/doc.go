// Package sensor provides the sensor backends selectable through the
// "sensor.type" setting. Importing it registers "simulated" and "sysfs".
package sensor
