package mission

import (
	"context"
	"log"

	"github.com/pkg/errors"
)

// Run wires the controller to the link and brackets the link's run loop
// with the navigation log. The log is closed however Start returns.
func Run(ctx context.Context, link Link, c *Controller, logDir, logFile string) (err error) {
	link.RegisterCallback(PositionEvent, func() { c.OnPositionUpdate(link.LocalPosition()) })
	link.RegisterCallback(VelocityEvent, func() { c.OnVelocityUpdate(link.LocalVelocity()) })
	link.RegisterCallback(ArmedStatusEvent, func() { c.OnArmedStatusUpdate(link.Armed()) })

	log.Printf("Creating log file")
	if logErr := link.StartLog(logDir, logFile); logErr != nil {
		return errors.WithMessage(logErr, "Could not start log")
	}
	defer func() {
		log.Printf("Closing log file")
		stopErr := link.StopLog()
		if stopErr != nil && err == nil {
			err = errors.WithMessage(stopErr, "Could not stop log")
		}
	}()

	log.Printf("Starting connection")
	if startErr := link.Start(ctx); startErr != nil {
		return errors.WithMessage(startErr, "Connection failed")
	}

	return nil
}
