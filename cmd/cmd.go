// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fleetroute/internal/formatter"
	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/tasks"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, csv, markdown or json",
		Value:   formatter.FormatText,
	}
}

func preferenceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "vehicle", Usage: "Vehicle ID the route is planned for"},
		&cli.BoolFlag{Name: "avoid-tolls", Usage: "Avoid toll roads"},
		&cli.BoolFlag{Name: "avoid-highways", Usage: "Avoid highways"},
		&cli.StringFlag{
			Name:  "optimize-for",
			Usage: "Optimization goal: time, distance or fuel",
			Value: string(models.OptimizeForTime),
		},
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{Name: "rollback", Usage: "Revert the most recent migration instead of applying pending ones"},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the backend session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in and save the session locally",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (or set FLEETROUTE_PASSWORD)"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "register",
				Usage: "Create an account and log in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (or set FLEETROUTE_PASSWORD)"},
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "last-name"},
				},
				Action: r.AuthRegister,
			},
			{
				Name:   "logout",
				Usage:  "End the session and forget it locally",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the logged in user",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Renew the session tokens",
				Action: r.AuthRefresh,
			},
		},
	}
}

// vehiclesCommand handles vehicle inventory operations
func vehiclesCommand(r *Runner) *cli.Command {
	vehicleFlags := []cli.Flag{
		&cli.StringFlag{Name: "make"},
		&cli.StringFlag{Name: "model"},
		&cli.IntFlag{Name: "year"},
		&cli.StringFlag{Name: "type", Usage: "e.g. van, truck"},
		&cli.StringFlag{Name: "status", Usage: "e.g. active, maintenance"},
		&cli.StringFlag{Name: "license-plate"},
		&cli.StringFlag{Name: "registration"},
		&cli.FloatFlag{Name: "capacity"},
		&cli.StringFlag{Name: "fuel-type"},
	}

	return &cli.Command{
		Name:    "vehicles",
		Aliases: []string{"vehicle", "v"},
		Usage:   "Vehicle inventory",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List vehicles",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "type"},
					&cli.StringFlag{Name: "make"},
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}},
					&cli.IntFlag{Name: "page"},
					&cli.IntFlag{Name: "limit"},
					jsonFlag(),
				},
				Action: r.VehiclesList,
			},
			{
				Name:      "get",
				Usage:     "Show one vehicle",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.VehiclesGet,
			},
			{
				Name:  "create",
				Usage: "Add a vehicle",
				Flags: append(vehicleFlags,
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "Vehicle as a JSON object instead of flags"},
					jsonFlag(),
				),
				Action: r.VehiclesCreate,
			},
			{
				Name:      "update",
				Usage:     "Change fields of a vehicle",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     append(append([]cli.Flag{}, vehicleFlags...), jsonFlag()),
				Action:    r.VehiclesUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Remove a vehicle",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.VehiclesDelete,
			},
		},
	}
}

// placesCommand handles address lookups through the places proxy
func placesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "places",
		Usage: "Look up addresses",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search for places matching a query",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.PlacesSearch,
			},
			{
				Name:  "reverse",
				Usage: "Find the address at a coordinate",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "lat", Required: true},
					&cli.FloatFlag{Name: "lng", Required: true},
					jsonFlag(),
				},
				Action: r.PlacesReverse,
			},
		},
	}
}

// planCommand handles saved stop lists
func planCommand(r *Runner) *cli.Command {
	planArg := []cli.Argument{&cli.StringArg{Name: "plan"}}

	return &cli.Command{
		Name:    "plan",
		Aliases: []string{"plans"},
		Usage:   "Saved stop lists",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an empty plan",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags:     preferenceFlags(),
				Action:    r.PlanCreate,
			},
			{
				Name:      "add",
				Usage:     "Add a stop by search (--query) or coordinates (--lat/--lng)",
				Arguments: planArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Add the best match for this address"},
					&cli.FloatFlag{Name: "lat"},
					&cli.FloatFlag{Name: "lng"},
					&cli.StringFlag{Name: "address", Usage: "Use this address instead of a reverse lookup"},
					&cli.IntFlag{Name: "priority"},
				},
				Action: r.PlanAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a stop",
				Arguments: []cli.Argument{&cli.StringArg{Name: "plan"}, &cli.StringArg{Name: "stop"}},
				Action:    r.PlanRemove,
			},
			{
				Name:      "move",
				Usage:     "Move a stop to a new position (1-based)",
				Arguments: planArg,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "from", Required: true},
					&cli.IntFlag{Name: "to", Required: true},
				},
				Action: r.PlanMove,
			},
			{
				Name:   "list",
				Usage:  "List saved plans",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "vehicle"}, jsonFlag()},
				Action: r.PlanList,
			},
			{
				Name:      "show",
				Usage:     "Show a plan's stops",
				Arguments: planArg,
				Flags:     []cli.Flag{formatFlag()},
				Action:    r.PlanShow,
			},
			{
				Name:      "delete",
				Usage:     "Delete a plan",
				Arguments: planArg,
				Action:    r.PlanDelete,
			},
		},
	}
}

// routeCommand handles optimization
func routeCommand(r *Runner) *cli.Command {
	optimizeFlags := append([]cli.Flag{
		&cli.StringFlag{Name: "plan", Usage: "Saved plan (id, number or name) to optimize"},
		&cli.StringSliceFlag{Name: "stop", Usage: "Stop as lat,lng[,address]; repeat in route order"},
		&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Wait for the push channel when the backend answers asynchronously", Value: true},
		&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for an asynchronous result", Value: defaultWatchTimeout},
		&cli.BoolFlag{Name: "save", Usage: "Write the optimized order back to --plan"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Also write the result to this file"},
		&cli.BoolFlag{Name: "open", Usage: "Open the route in Google Maps"},
		formatFlag(),
	}, preferenceFlags()...)

	return &cli.Command{
		Name:  "route",
		Usage: "Optimize routes",
		Commands: []*cli.Command{
			{
				Name:   "optimize",
				Usage:  "Submit stops for optimization and print the result",
				Flags:  optimizeFlags,
				Action: r.RouteOptimize,
			},
			{
				Name:  "batch",
				Usage: "Optimize several saved plans concurrently and export each route",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "plan", Usage: "Plan (id, number or name); repeat, or omit for every plan"},
					&cli.StringFlag{Name: "vehicle", Usage: "Only plans for this vehicle"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format: text, csv, markdown or json", Value: formatter.FormatJSON},
					&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for exports (default: fleetroute_batch_{epoch})"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent optimizations (max 10)", Value: tasks.DefaultWorkers},
					&cli.FloatFlag{Name: "rate", Usage: "Submissions per second", Value: tasks.DefaultRateLimit},
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for each asynchronous result", Value: defaultWatchTimeout},
					&cli.BoolFlag{Name: "save", Usage: "Write each optimized order back to its plan"},
				},
				Action: r.RouteBatch,
			},
			{
				Name:  "history",
				Usage: "List past optimizations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "plan"},
					&cli.StringFlag{Name: "status", Usage: "succeeded or failed"},
					&cli.IntFlag{Name: "limit", Value: 20},
					jsonFlag(),
				},
				Action: r.RouteHistory,
			},
		},
	}
}

// serveCommand runs the places proxy
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the places proxy in front of the mapping provider",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default from [server] config)"},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive route planning.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive route planner",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "plan", Usage: "Start from a saved plan"},
			&cli.StringFlag{Name: "log-file", Value: "./tmp/fleetroute-tui.log"},
		}, preferenceFlags()...),
		Action: r.TUI,
	}
}
