package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/infrastructure/storage"
	"waypoint-server/internal/systems"
	"waypoint-server/pkg/mapgen"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(out io.Writer, args []string) error {
	if len(args) == 0 {
		printHelp(out)
		return nil
	}

	switch args[0] {
	case "keys":
		if len(args) < 3 {
			return fmt.Errorf("usage: gradtool keys <dir> <world>")
		}
		store, err := storage.NewGradientStore(args[1], args[2])
		if err != nil {
			return err
		}
		for _, key := range store.Keys() {
			fmt.Fprintln(out, key)
		}
	case "show":
		if len(args) < 4 {
			return fmt.Errorf("usage: gradtool show <dir> <world> <row.col>")
		}
		store, err := storage.NewGradientStore(args[1], args[2])
		if err != nil {
			return err
		}
		g, err := store.Load(args[3])
		if err != nil {
			return err
		}
		printGradient(out, g)
	case "rm":
		if len(args) < 4 {
			return fmt.Errorf("usage: gradtool rm <dir> <world> <row.col>")
		}
		store, err := storage.NewGradientStore(args[1], args[2])
		if err != nil {
			return err
		}
		return store.Remove(args[3])
	case "genmap":
		if len(args) < 4 {
			return fmt.Errorf("usage: gradtool genmap <seed> <width> <height> [open]")
		}
		seed, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %w", err)
		}
		width, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid width: %w", err)
		}
		height, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("invalid height: %w", err)
		}
		m, err := mapgen.Generate(seed, mapgen.Options{
			Width:     width,
			Height:    height,
			OpenField: len(args) > 4 && args[4] == "open",
			Boulders:  true,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strings.Join(m.Lines(), "\n"))
	default:
		printHelp(out)
	}
	return nil
}

// printGradient печатает матрицу стоимостей, недостижимые клетки - "#"
func printGradient(out io.Writer, g *systems.Gradient) {
	fmt.Fprintf(out, "center %s, %dx%d, complete=%t, reachable=%d\n",
		g.Key(), g.Width(), g.Height(), g.Complete(), g.Reachable())

	cell := len(strconv.Itoa(maxCost(g))) + 1
	for row := 0; row < g.Height(); row++ {
		var sb strings.Builder
		for _, cost := range g.Row(row) {
			if cost == systems.Unreachable {
				sb.WriteString(fmt.Sprintf("%*s", cell, "#"))
				continue
			}
			sb.WriteString(fmt.Sprintf("%*d", cell, cost))
		}
		fmt.Fprintln(out, sb.String())
	}
}

func maxCost(g *systems.Gradient) int {
	best := 0
	g.Each(func(_ domain.Position, cost int32) {
		if cost != systems.Unreachable && int(cost) > best {
			best = int(cost)
		}
	})
	return best
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `Gradient tool - просмотр хранилища градиентов и генерация карт
Commands:
  keys <dir> <world>               - ключи сохраненных градиентов
  show <dir> <world> <row.col>     - матрица стоимостей градиента
  rm <dir> <world> <row.col>       - удалить градиент
  genmap <seed> <w> <h> [open]     - сгенерировать текстовую карту`)
}
