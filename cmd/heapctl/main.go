// Command heapctl is a small one-shot CLI over the storage engine.
//
// Usage:
//
//	heapctl create-table --container=1 [--config=heapctl.jsonc]
//	heapctl insert --container=1 [--config=heapctl.jsonc] <value>
//	heapctl scan --container=1 [--config=heapctl.jsonc]
//	heapctl stats --container=1 [--config=heapctl.jsonc]
//	heapctl export --container=1 --out=snapshot.json [--config=heapctl.jsonc]
//	heapctl import --container=1 --in=snapshot.json [--config=heapctl.jsonc]
package main

import (
	"fmt"
	"log"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/mnohosten/heapstore/pkg/config"
	"github.com/mnohosten/heapstore/pkg/export"
	"github.com/mnohosten/heapstore/pkg/ids"
	"github.com/mnohosten/heapstore/pkg/storage"
)

var logger = log.New(os.Stderr, "heapctl: ", 0)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage())
		os.Exit(2)
	}

	code := run(os.Args[1], os.Args[2:])
	os.Exit(code)
}

func run(command string, args []string) int {
	switch command {
	case "create-table":
		return cmdCreateTable(args)
	case "insert":
		return cmdInsert(args)
	case "scan":
		return cmdScan(args)
	case "stats":
		return cmdStats(args)
	case "export":
		return cmdExport(args)
	case "import":
		return cmdImport(args)
	case "help", "-h", "--help":
		fmt.Print(usage())
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", command, usage())
		return 2
	}
}

func usage() string {
	return `heapctl: slotted-page heap storage CLI

Commands:
  create-table --container=N
  insert       --container=N <value>
  scan         --container=N
  stats        --container=N
  export       --container=N --out=FILE
  import       --container=N --in=FILE
`
}

func openManager(cfg config.Config) (*storage.StorageManager, error) {
	sm, err := storage.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open storage manager at %s: %w", cfg.StoragePath, err)
	}
	return sm, nil
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	return cfg
}

func cmdCreateTable(args []string) int {
	flagSet := flag.NewFlagSet("create-table", flag.ContinueOnError)
	container := flagSet.Uint64("container", 0, "container id")
	configPath := flagSet.String("config", "heapctl.jsonc", "config file path")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(*configPath)
	sm, err := openManager(cfg)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer sm.Shutdown()

	if err := sm.CreateTable(ids.ContainerID(*container)); err != nil {
		logger.Println(err)
		return 1
	}
	logger.Printf("created container %d at %s", *container, cfg.StoragePath)
	return 0
}

func cmdInsert(args []string) int {
	flagSet := flag.NewFlagSet("insert", flag.ContinueOnError)
	container := flagSet.Uint64("container", 0, "container id")
	configPath := flagSet.String("config", "heapctl.jsonc", "config file path")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if flagSet.NArg() != 1 {
		logger.Println("insert requires exactly one value argument")
		return 2
	}

	cfg := loadConfig(*configPath)
	sm, err := openManager(cfg)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer sm.Shutdown()

	id, err := sm.InsertValue(ids.ContainerID(*container), []byte(flagSet.Arg(0)), 0)
	if err != nil {
		logger.Println(err)
		return 1
	}
	fmt.Println(id)
	return 0
}

func cmdScan(args []string) int {
	flagSet := flag.NewFlagSet("scan", flag.ContinueOnError)
	container := flagSet.Uint64("container", 0, "container id")
	configPath := flagSet.String("config", "heapctl.jsonc", "config file path")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(*configPath)
	sm, err := openManager(cfg)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer sm.Shutdown()

	it := sm.GetIterator(ids.ContainerID(*container), 0, ids.ReadOnly)
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		fmt.Println(string(v))
	}
	return 0
}

func cmdStats(args []string) int {
	flagSet := flag.NewFlagSet("stats", flag.ContinueOnError)
	container := flagSet.Uint64("container", 0, "container id")
	configPath := flagSet.String("config", "heapctl.jsonc", "config file path")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(*configPath)
	sm, err := openManager(cfg)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer sm.Shutdown()

	cid := ids.ContainerID(*container)
	numPages, err := sm.GetNumPages(cid)
	if err != nil {
		logger.Println(err)
		return 1
	}
	reads, writes, err := sm.GetHeapFileReadWriteCount(cid)
	if err != nil {
		logger.Println(err)
		return 1
	}
	fmt.Printf("pages=%d reads=%d writes=%d\n", numPages, reads, writes)
	return 0
}

func cmdExport(args []string) int {
	flagSet := flag.NewFlagSet("export", flag.ContinueOnError)
	container := flagSet.Uint64("container", 0, "container id")
	out := flagSet.String("out", "", "output snapshot file")
	configPath := flagSet.String("config", "heapctl.jsonc", "config file path")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if *out == "" {
		logger.Println("export requires --out")
		return 2
	}

	cfg := loadConfig(*configPath)
	sm, err := openManager(cfg)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer sm.Shutdown()

	algo, err := export.ParseAlgorithm(cfg.Compression)
	if err != nil {
		logger.Println(err)
		return 2
	}

	file, err := os.Create(*out)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer file.Close()

	if err := export.Snapshot(sm, ids.ContainerID(*container), algo, file); err != nil {
		logger.Println(err)
		return 1
	}
	logger.Printf("exported container %d to %s", *container, *out)
	return 0
}

func cmdImport(args []string) int {
	flagSet := flag.NewFlagSet("import", flag.ContinueOnError)
	container := flagSet.Uint64("container", 0, "container id")
	in := flagSet.String("in", "", "input snapshot file")
	configPath := flagSet.String("config", "heapctl.jsonc", "config file path")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if *in == "" {
		logger.Println("import requires --in")
		return 2
	}

	cfg := loadConfig(*configPath)
	sm, err := openManager(cfg)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer sm.Shutdown()

	cid := ids.ContainerID(*container)
	if err := sm.CreateTable(cid); err != nil {
		logger.Println(err)
		return 1
	}

	file, err := os.Open(*in)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer file.Close()

	if err := export.Restore(sm, cid, file); err != nil {
		logger.Println(err)
		return 1
	}
	logger.Printf("imported %s into container %d", *in, *container)
	return 0
}

